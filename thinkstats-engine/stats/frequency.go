package stats

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Bucket is one distinct value and the number of rows holding it.
type Bucket[K cmp.Ordered] struct {
	Value K
	Count int64
}

// Frequency is the value distribution of one column, ordered by value.
// Nulls and NaNs are counted in Missing, so Total always equals the column length.
type Frequency[K cmp.Ordered] struct {
	Column  string
	Type    arrow.DataType
	Buckets []Bucket[K]
	Missing int64
}

// Count returns the number of rows holding v.
func (f *Frequency[K]) Count(v K) int64 {
	i, found := slices.BinarySearchFunc(f.Buckets, v, func(b Bucket[K], v K) int {
		return cmp.Compare(b.Value, v)
	})
	if !found {
		return 0
	}
	return f.Buckets[i].Count
}

// Total returns the sum of all bucket counts plus missing values.
func (f *Frequency[K]) Total() int64 {
	total := f.Missing
	for _, b := range f.Buckets {
		total += b.Count
	}
	return total
}

// Fprint writes one "value count" line per bucket followed by a footer
// naming the column and its type.
func (f *Frequency[K]) Fprint(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 4, ' ', tabwriter.AlignRight)
	for _, b := range f.Buckets {
		if _, err := fmt.Fprintf(tw, "%v\t%d\t\n", b.Value, b.Count); err != nil {
			return err
		}
	}
	if f.Missing > 0 {
		if _, err := fmt.Fprintf(tw, "NaN\t%d\t\n", f.Missing); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Name: %s, dtype: %s\n", f.Column, f.Type)
	return err
}

// IntValueCounts counts the values of an int64 column.
func IntValueCounts(record arrow.Record, column string) (*Frequency[int64], error) {
	col, err := typedColumn[*array.Int64](record, column, arrow.INT64)
	if err != nil {
		return nil, err
	}
	return valueCounts(column, col, col.Value), nil
}

// FloatValueCounts counts the values of a float64 column.
func FloatValueCounts(record arrow.Record, column string) (*Frequency[float64], error) {
	col, err := typedColumn[*array.Float64](record, column, arrow.FLOAT64)
	if err != nil {
		return nil, err
	}
	return valueCounts(column, col, col.Value), nil
}

// StringValueCounts counts the values of a string column.
func StringValueCounts(record arrow.Record, column string) (*Frequency[string], error) {
	col, err := typedColumn[*array.String](record, column, arrow.STRING)
	if err != nil {
		return nil, err
	}
	return valueCounts(column, col, col.Value), nil
}

// CountValue returns how many rows of an int64 column equal value.
func CountValue(record arrow.Record, column string, value int64) (int64, error) {
	col, err := typedColumn[*array.Int64](record, column, arrow.INT64)
	if err != nil {
		return 0, err
	}
	var n int64
	for i := 0; i < col.Len(); i++ {
		if col.IsValid(i) && col.Value(i) == value {
			n++
		}
	}
	return n, nil
}

// Column returns the named column of record.
func Column(record arrow.Record, name string) (arrow.Array, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}
	indices := record.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return record.Column(indices[0]), nil
}

func typedColumn[A arrow.Array](record arrow.Record, name string, id arrow.Type) (A, error) {
	var zero A
	col, err := Column(record, name)
	if err != nil {
		return zero, err
	}
	if col.DataType().ID() != id {
		return zero, fmt.Errorf("column %q is %s, not %s", name, col.DataType(), id)
	}
	typed, ok := col.(A)
	if !ok {
		return zero, fmt.Errorf("column %q has unexpected array type %T", name, col)
	}
	return typed, nil
}

func valueCounts[K cmp.Ordered](name string, col arrow.Array, value func(int) K) *Frequency[K] {
	freq := &Frequency[K]{Column: name, Type: col.DataType()}

	counts := make(map[K]int64)
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			freq.Missing++
			continue
		}
		v := value(i)
		if v != v { // NaN
			freq.Missing++
			continue
		}
		counts[v]++
	}

	freq.Buckets = make([]Bucket[K], 0, len(counts))
	for v, n := range counts {
		freq.Buckets = append(freq.Buckets, Bucket[K]{Value: v, Count: n})
	}
	slices.SortFunc(freq.Buckets, func(a, b Bucket[K]) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return freq
}
