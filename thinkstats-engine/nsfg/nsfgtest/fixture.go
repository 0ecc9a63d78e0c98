// Package nsfgtest writes small respondent files for tests.
package nsfgtest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Dct is a cut-down 2002FemResp dictionary with the layout of Row.
const Dct = `infile dictionary {
    _column(1)      str12                           caseid  %12s  "RESPONDENT ID NUMBER"
    _column(13)     byte                              ager  %2f  "AGE AT INTERVIEW"
    _column(15)     byte                           pregnum  %2f  "CAPI-BASED TOTAL NUMBER OF PREGNANCIES"
    _column(17)     double                        finalwgt  %18f  "FINAL WEIGHT"
}
`

// CanonicalPregnum is the pregnum distribution of the 2002 female
// respondent file (7643 rows).
var CanonicalPregnum = map[int64]int64{
	0: 2610, 1: 1267, 2: 1432, 3: 1110, 4: 611, 5: 305, 6: 150,
	7: 80, 8: 40, 9: 21, 10: 9, 11: 3, 12: 2, 14: 2, 19: 1,
}

// Row is one generated respondent.
type Row struct {
	CaseID   string
	Ager     int64
	Pregnum  int64
	FinalWgt float64
}

// Line renders the row in the fixed-width layout of Dct.
func (r Row) Line() string {
	return fmt.Sprintf("%12s%2d%2d%18.6f", r.CaseID, r.Ager, r.Pregnum, r.FinalWgt)
}

// Rows generates respondents whose pregnum values follow dist. Values are
// interleaved in ascending order so that any prefix mixes several values.
func Rows(dist map[int64]int64) []Row {
	keys := make([]int64, 0, len(dist))
	remaining := make(map[int64]int64, len(dist))
	var total int64
	for k, n := range dist {
		keys = append(keys, k)
		remaining[k] = n
		total += n
	}
	slices.Sort(keys)

	rows := make([]Row, 0, total)
	for int64(len(rows)) < total {
		for _, k := range keys {
			if remaining[k] == 0 {
				continue
			}
			remaining[k]--
			i := len(rows)
			rows = append(rows, Row{
				CaseID:   fmt.Sprintf("%d", 10000+i),
				Ager:     int64(15 + i%30),
				Pregnum:  k,
				FinalWgt: 1000 + float64(i)/2,
			})
		}
	}
	return rows
}

// Write writes Dct and a gzip-compressed data file for dist into dir and
// returns both paths.
func Write(tb testing.TB, dir string, dist map[int64]int64) (dctPath, datPath string) {
	tb.Helper()

	lines := make([]string, 0, len(dist))
	for _, row := range Rows(dist) {
		lines = append(lines, row.Line())
	}
	return WriteFiles(tb, dir, Dct, lines)
}

// WriteFiles writes a dictionary and gzip-compresses the given data lines.
func WriteFiles(tb testing.TB, dir, dct string, lines []string) (dctPath, datPath string) {
	tb.Helper()

	dctPath = filepath.Join(dir, "2002FemResp.dct")
	if err := os.WriteFile(dctPath, []byte(dct), 0o644); err != nil {
		tb.Fatalf("Failed to write dictionary: %v", err)
	}

	datPath = filepath.Join(dir, "2002FemResp.dat.gz")
	f, err := os.Create(datPath)
	if err != nil {
		tb.Fatalf("Failed to create data file: %v", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		tb.Fatalf("Failed to write data file: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("Failed to close gzip stream: %v", err)
	}
	return dctPath, datPath
}
