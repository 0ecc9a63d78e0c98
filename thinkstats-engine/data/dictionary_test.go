package data

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/nsfg/nsfgtest"
)

func TestParseStataDct(t *testing.T) {
	dict, err := ParseStataDct(strings.NewReader(nsfgtest.Dct))
	require.NoError(t, err)

	want := []Variable{
		{Name: "caseid", StataType: "str12", Kind: KindString, Start: 1, End: 13, Format: "%12s", Desc: "RESPONDENT ID NUMBER"},
		{Name: "ager", StataType: "byte", Kind: KindInt, Start: 13, End: 15, Format: "%2f", Desc: "AGE AT INTERVIEW"},
		{Name: "pregnum", StataType: "byte", Kind: KindInt, Start: 15, End: 17, Format: "%2f", Desc: "CAPI-BASED TOTAL NUMBER OF PREGNANCIES"},
		{Name: "finalwgt", StataType: "double", Kind: KindFloat, Start: 17, End: 35, Format: "%18f", Desc: "FINAL WEIGHT"},
	}
	if diff := cmp.Diff(want, dict.Variables); diff != "" {
		t.Errorf("Variables mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, dict.Variables[1].Width())
}

func TestParseStataDctLowercasesNames(t *testing.T) {
	dct := `infile dictionary {
    _column(1)  str2   CaseID  %2s  "ID"
    _column(3)  long   WGT     %-9.0g
}`
	dict, err := ParseStataDct(strings.NewReader(dct))
	require.NoError(t, err)

	v, ok := dict.Lookup("WGT")
	require.True(t, ok)
	assert.Equal(t, "wgt", v.Name)
	assert.Equal(t, 12, v.End, "last variable ends at start plus format width")
	assert.Empty(t, v.Desc)

	_, ok = dict.Lookup("caseid")
	assert.True(t, ok)
}

func TestParseStataDctOpenEndedLastColumn(t *testing.T) {
	dict, err := ParseStataDct(strings.NewReader(`_column(1) str5 name %s "NAME"`))
	require.NoError(t, err)

	assert.Equal(t, 0, dict.Variables[0].End)
	assert.Equal(t, 0, dict.Variables[0].Width())
}

func TestParseStataDctErrors(t *testing.T) {
	tests := []struct {
		name string
		dct  string
		line int
	}{
		{"no variables", "infile dictionary {\n}\n", 2},
		{"unknown type", "_column(1) quad x %2f", 1},
		{"missing format", "_column(1) byte x", 1},
		{"bad start", "_column(abc) byte x %2f", 1},
		{"zero start", "_column(0) byte x %2f", 1},
		{"descending columns", "_column(5) byte x %2f\n_column(3) byte y %2f", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStataDct(strings.NewReader(tt.dct))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestReadStataDctMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.dct")

	_, err := ReadStataDct(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceNotFound))

	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, path, rerr.Path)
}

func TestReadStataDct(t *testing.T) {
	dctPath, _ := nsfgtest.Write(t, t.TempDir(), map[int64]int64{1: 1})

	dict, err := ReadStataDct(dctPath)
	require.NoError(t, err)
	assert.Equal(t, 4, dict.Len())
}

func TestDictionaryArrowSchema(t *testing.T) {
	dict, err := ParseStataDct(strings.NewReader(nsfgtest.Dct))
	require.NoError(t, err)

	schema := dict.ArrowSchema()
	require.Equal(t, 4, schema.NumFields())

	expected := []struct {
		name string
		id   arrow.Type
	}{
		{"caseid", arrow.STRING},
		{"ager", arrow.INT64},
		{"pregnum", arrow.INT64},
		{"finalwgt", arrow.FLOAT64},
	}
	for i, e := range expected {
		field := schema.Field(i)
		if field.Name != e.name {
			t.Errorf("Field %d: expected name %s, got %s", i, e.name, field.Name)
		}
		if field.Type.ID() != e.id {
			t.Errorf("Field %s: expected type %s, got %s", e.name, e.id, field.Type.ID())
		}
		if !field.Nullable {
			t.Errorf("Field %s should be nullable", e.name)
		}
	}

	md := schema.Field(2).Metadata
	idx := md.FindKey("start")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "15", md.Values()[idx])
	idx = md.FindKey("desc")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "CAPI-BASED TOTAL NUMBER OF PREGNANCIES", md.Values()[idx])
}

func TestDictionarySelect(t *testing.T) {
	dict, err := ParseStataDct(strings.NewReader(nsfgtest.Dct))
	require.NoError(t, err)

	sub, err := dict.Select("finalwgt", "PREGNUM", "pregnum")
	require.NoError(t, err)

	got := make([]string, 0, sub.Len())
	for _, v := range sub.Variables {
		got = append(got, v.Name)
	}
	assert.Equal(t, []string{"pregnum", "finalwgt"}, got, "file order is kept")

	v, _ := sub.Lookup("pregnum")
	if diff := cmp.Diff(dict.Variables[2], v, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("selected variable changed (-want +got):\n%s", diff)
	}

	_, err = dict.Select("nope")
	assert.Error(t, err)
}
