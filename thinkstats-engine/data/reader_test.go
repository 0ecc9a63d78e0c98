package data

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/nsfg/nsfgtest"
)

func mustDict(t *testing.T) *Dictionary {
	t.Helper()
	dict, err := ParseStataDct(strings.NewReader(nsfgtest.Dct))
	require.NoError(t, err)
	return dict
}

func TestReaderRead(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	input := strings.Join([]string{
		"       10001 3 2        123.500000",
		"       10002   1",                     // blank ager, short line: no finalwgt
		"",                                     // blank lines are skipped
		"         abc1234              7.25\r", // CRLF tolerated
	}, "\n")

	record, err := NewReader(mustDict(t), WithAllocator(mem)).Read(strings.NewReader(input))
	require.NoError(t, err)
	defer record.Release()

	require.EqualValues(t, 3, record.NumRows())
	require.EqualValues(t, 4, record.NumCols())

	caseid := record.Column(0).(*array.String)
	ager := record.Column(1).(*array.Int64)
	pregnum := record.Column(2).(*array.Int64)
	finalwgt := record.Column(3).(*array.Float64)

	assert.Equal(t, "10001", caseid.Value(0))
	assert.Equal(t, "abc", caseid.Value(2))

	assert.EqualValues(t, 3, ager.Value(0))
	assert.True(t, ager.IsNull(1))
	assert.EqualValues(t, 12, ager.Value(2))

	assert.EqualValues(t, []int64{2, 1, 34}, pregnum.Int64Values())

	assert.Equal(t, 123.5, finalwgt.Value(0))
	assert.True(t, finalwgt.IsNull(1))
	assert.Equal(t, 7.25, finalwgt.Value(2))
}

func TestReaderReadParseError(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	input := "       10001 3 2             1.0\n       10002 x 2             1.0\n"

	record, err := NewReader(mustDict(t), WithAllocator(mem)).Read(strings.NewReader(input))
	require.Error(t, err)
	assert.Nil(t, record)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, "ager", perr.Column)
	assert.Equal(t, "x", perr.Value)
}

func TestReaderNRowsIsPrefix(t *testing.T) {
	dist := map[int64]int64{0: 5, 1: 4, 3: 3, 5: 2}
	_, datPath := nsfgtest.Write(t, t.TempDir(), dist)

	full, err := NewReader(mustDict(t)).ReadFile(datPath)
	require.NoError(t, err)
	defer full.Release()
	require.EqualValues(t, 14, full.NumRows())

	for _, n := range []int{1, 5, 13} {
		part, err := NewReader(mustDict(t), WithNRows(n)).ReadFile(datPath)
		require.NoError(t, err)

		require.EqualValues(t, n, part.NumRows())
		want := full.NewSlice(0, int64(n))
		for i := 0; i < int(full.NumCols()); i++ {
			assert.Truef(t, array.Equal(want.Column(i), part.Column(i)),
				"nrows=%d: column %s is not a prefix", n, full.ColumnName(i))
		}
		want.Release()
		part.Release()
	}

	// A limit beyond the row count reads everything.
	all, err := NewReader(mustDict(t), WithNRows(100)).ReadFile(datPath)
	require.NoError(t, err)
	defer all.Release()
	assert.EqualValues(t, 14, all.NumRows())
}

func TestReaderReadFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2002FemResp.dat.gz")

	record, err := NewReader(mustDict(t)).ReadFile(path)
	require.Error(t, err)
	assert.Nil(t, record, "a missing file must not yield an empty table")
	assert.True(t, errors.Is(err, ErrResourceNotFound))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReaderReadFileNotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.dat.gz")
	require.NoError(t, os.WriteFile(path, []byte("       10001 3 2             1.0\n"), 0o644))

	_, err := NewReader(mustDict(t)).ReadFile(path)
	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.False(t, errors.Is(err, ErrResourceNotFound))

	// Forcing no compression reads it as plain text.
	record, err := NewReader(mustDict(t), WithCompression(CompressionNone)).ReadFile(path)
	require.NoError(t, err)
	defer record.Release()
	assert.EqualValues(t, 1, record.NumRows())
}

func TestReaderReadFileParseErrorNamesPath(t *testing.T) {
	dir := t.TempDir()
	_, datPath := nsfgtest.WriteFiles(t, dir, nsfgtest.Dct, []string{"       10001 3 ?"})

	_, err := NewReader(mustDict(t)).ReadFile(datPath)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "pregnum", perr.Column)
	assert.Contains(t, err.Error(), datPath)
}

func TestReaderWithColumns(t *testing.T) {
	_, datPath := nsfgtest.Write(t, t.TempDir(), map[int64]int64{2: 3})

	record, err := NewReader(mustDict(t), WithColumns("pregnum")).ReadFile(datPath)
	require.NoError(t, err)
	defer record.Release()

	require.EqualValues(t, 1, record.NumCols())
	assert.Equal(t, "pregnum", record.ColumnName(0))
	assert.EqualValues(t, []int64{2, 2, 2}, record.Column(0).(*array.Int64).Int64Values())

	_, err = NewReader(mustDict(t), WithColumns("nope")).ReadFile(datPath)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrResourceNotFound))
}

func TestValidateSchema(t *testing.T) {
	dict := mustDict(t)

	record, err := NewReader(dict).Read(strings.NewReader("       10001 3 2             1.0\n"))
	require.NoError(t, err)
	defer record.Release()

	// Should pass validation with correct schema
	if err := ValidateSchema(record, dict.ArrowSchema()); err != nil {
		t.Errorf("Validation should pass: %v", err)
	}

	// Should fail with different schema
	sub, err := dict.Select("caseid", "pregnum")
	require.NoError(t, err)
	if err := ValidateSchema(record, sub.ArrowSchema()); err == nil {
		t.Error("Validation should fail with wrong schema")
	}

	if err := ValidateSchema(nil, dict.ArrowSchema()); err == nil {
		t.Error("Validation should fail for a nil record")
	}
}

func TestValidateSchemaLayoutMismatch(t *testing.T) {
	dict := mustDict(t)

	record, err := NewReader(dict).Read(strings.NewReader("       10001 3 2             1.0\n"))
	require.NoError(t, err)
	defer record.Release()

	tests := []struct {
		name    string
		mutate  func(vars []Variable)
		wantErr string
	}{
		{"shifted end", func(vars []Variable) { vars[len(vars)-1].End += 2 }, `end mismatch`},
		{"format", func(vars []Variable) { vars[0].Format = "%10s" }, `format mismatch: got "%12s", expected "%10s"`},
		{"description", func(vars []Variable) { vars[1].Desc = "AGE" }, `desc mismatch`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := slices.Clone(dict.Variables)
			tt.mutate(vars)

			err := ValidateSchema(record, NewDictionary(vars).ArrowSchema())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("nullability", func(t *testing.T) {
		fields := slices.Clone(dict.ArrowSchema().Fields())
		fields[0].Nullable = false

		err := ValidateSchema(record, arrow.NewSchema(fields, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nullability mismatch")
	})

	t.Run("metadata absent from record", func(t *testing.T) {
		bare := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)
		b := array.NewRecordBuilder(memory.DefaultAllocator, bare)
		defer b.Release()
		rec := b.NewRecord()
		defer rec.Release()

		want := arrow.NewSchema([]arrow.Field{{
			Name: "x", Type: arrow.PrimitiveTypes.Int64, Nullable: true,
			Metadata: arrow.NewMetadata([]string{"start"}, []string{"1"}),
		}}, nil)
		err := ValidateSchema(rec, want)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing start metadata")
	})
}
