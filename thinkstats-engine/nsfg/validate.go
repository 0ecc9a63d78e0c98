package nsfg

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/stats"
)

// Snapshot values of the 2002 female respondent file.
const (
	ExpectedRows     = 7643
	ExpectedPregnum1 = 1267
	ExpectedPregnum3 = 1110
	ExpectedPregnum5 = 305
)

// AssertionError reports the first check that did not match the snapshot.
type AssertionError struct {
	Check string
	Got   int64
	Want  int64
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: got %d, want %d", e.Check, e.Got, e.Want)
}

type check struct {
	name string
	got  int64
	want int64
}

// Validate loads the respondent file, writes the pregnum distribution and
// the row count to w, and checks them against the snapshot. It stops at the
// first mismatch with an *AssertionError. On success it writes
// "<label>: All tests passed.".
func Validate(label string, w io.Writer, opts ...Option) error {
	o := newOptions(opts)

	record, err := readFemResp(o)
	if err != nil {
		return err
	}
	defer record.Release()

	freq, err := stats.IntValueCounts(record, "pregnum")
	if err != nil {
		return fmt.Errorf("failed to count pregnum: %w", err)
	}

	if err := freq.Fprint(w); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, record.NumRows()); err != nil {
		return err
	}

	checks := []check{
		{"len(table) == 7643", record.NumRows(), ExpectedRows},
		{"pregnum[1] == 1267", freq.Count(1), ExpectedPregnum1},
		{"pregnum[3] == 1110", freq.Count(3), ExpectedPregnum3},
		{"pregnum[5] == 305", freq.Count(5), ExpectedPregnum5},
	}
	for _, c := range checks {
		passed := c.got == c.want
		if o.metrics != nil {
			o.metrics.RecordCheck(passed)
		}
		if !passed {
			o.logger.Error("snapshot check failed",
				zap.String("check", c.name),
				zap.Int64("got", c.got),
				zap.Int64("want", c.want))
			return &AssertionError{Check: c.name, Got: c.got, Want: c.want}
		}
	}

	_, err = fmt.Fprintf(w, "%s: All tests passed.\n", label)
	return err
}
