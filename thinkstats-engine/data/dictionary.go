package data

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind is the Go-side value kind a Stata storage type is decoded into.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// ArrowType returns the Arrow column type for the kind.
func (k Kind) ArrowType() arrow.DataType {
	switch k {
	case KindInt:
		return arrow.PrimitiveTypes.Int64
	case KindFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// Variable describes one column of a fixed-width file.
//
// Start is 1-based and inclusive, End is 1-based and exclusive. An End of
// zero means the field runs to the end of the line.
type Variable struct {
	Name      string
	StataType string
	Kind      Kind
	Start     int
	End       int
	Format    string
	Desc      string
}

// Width returns the field width, or 0 for an open-ended field.
func (v Variable) Width() int {
	if v.End == 0 {
		return 0
	}
	return v.End - v.Start
}

// Dictionary is the ordered column layout of a fixed-width file.
type Dictionary struct {
	Variables []Variable
	index     map[string]int
}

var (
	columnPattern = regexp.MustCompile(`_column\(([^)]*)\)`)
	widthPattern  = regexp.MustCompile(`^%-?(\d+)`)
)

var stataKinds = map[string]Kind{
	"byte":    KindInt,
	"int":     KindInt,
	"long":    KindInt,
	"float":   KindFloat,
	"double":  KindFloat,
	"numeric": KindFloat,
}

// ReadStataDct reads a Stata infile dictionary from path.
func ReadStataDct(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	defer f.Close()

	dict, err := ParseStataDct(f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, &ResourceError{Path: path, Err: err}
	}
	return dict, nil
}

// ParseStataDct parses a Stata infile dictionary. Only lines holding a
// _column(N) directive declare variables; everything else is ignored.
func ParseStataDct(r io.Reader) (*Dictionary, error) {
	var vars []Variable

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		loc := columnPattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		start, err := strconv.Atoi(strings.TrimSpace(line[loc[2]:loc[3]]))
		if err != nil || start < 1 {
			return nil, &ParseError{Line: lineNo, Err: fmt.Errorf("invalid column start %q", line[loc[2]:loc[3]])}
		}

		fields := strings.Fields(line[loc[1]:])
		if len(fields) < 3 {
			return nil, &ParseError{Line: lineNo, Err: errors.New("expected type, name and format after _column")}
		}

		vtype, name, format := fields[0], strings.ToLower(fields[1]), fields[2]
		kind, err := kindOf(vtype)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Column: name, Err: err}
		}

		vars = append(vars, Variable{
			Name:      name,
			StataType: vtype,
			Kind:      kind,
			Start:     start,
			Format:    format,
			Desc:      strings.Trim(strings.Join(fields[3:], " "), `"`),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(vars) == 0 {
		return nil, &ParseError{Line: lineNo, Err: errors.New("dictionary declares no variables")}
	}

	// Each field ends where the next one starts; the last one is bounded
	// by its format width when it has one.
	for i := range vars {
		if i+1 < len(vars) {
			if vars[i+1].Start <= vars[i].Start {
				return nil, &ParseError{Column: vars[i+1].Name, Err: fmt.Errorf(
					"column %d does not follow column %d", vars[i+1].Start, vars[i].Start)}
			}
			vars[i].End = vars[i+1].Start
			continue
		}
		if w := formatWidth(vars[i].Format); w > 0 {
			vars[i].End = vars[i].Start + w
		}
	}

	return NewDictionary(vars), nil
}

// NewDictionary builds a dictionary from an explicit layout.
func NewDictionary(vars []Variable) *Dictionary {
	d := &Dictionary{
		Variables: vars,
		index:     make(map[string]int, len(vars)),
	}
	for i, v := range vars {
		if _, dup := d.index[v.Name]; !dup {
			d.index[v.Name] = i
		}
	}
	return d
}

func kindOf(vtype string) (Kind, error) {
	if strings.HasPrefix(vtype, "str") {
		return KindString, nil
	}
	kind, ok := stataKinds[vtype]
	if !ok {
		return 0, fmt.Errorf("unknown storage type %q", vtype)
	}
	return kind, nil
}

// formatWidth extracts the display width from a Stata format such as %12s or %3.1f.
func formatWidth(format string) int {
	m := widthPattern.FindStringSubmatch(format)
	if m == nil {
		return 0
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return w
}

// Len returns the number of variables.
func (d *Dictionary) Len() int { return len(d.Variables) }

// Lookup returns the variable with the given name.
func (d *Dictionary) Lookup(name string) (Variable, bool) {
	i, ok := d.index[strings.ToLower(name)]
	if !ok {
		return Variable{}, false
	}
	return d.Variables[i], true
}

// Select narrows the dictionary to the named variables, keeping file order
// and each variable's original byte range.
func (d *Dictionary) Select(names ...string) (*Dictionary, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(name)
		if _, ok := d.index[name]; !ok {
			return nil, fmt.Errorf("unknown variable %q", name)
		}
		wanted[name] = true
	}

	vars := make([]Variable, 0, len(wanted))
	for _, v := range d.Variables {
		if wanted[v.Name] {
			vars = append(vars, v)
			delete(wanted, v.Name)
		}
	}
	return NewDictionary(vars), nil
}

// ArrowSchema returns the Arrow schema for records read with this dictionary.
//
// Every field is nullable. Field metadata carries the layout:
//   - start: 1-based first byte
//   - end: 1-based exclusive end byte, 0 when open-ended
//   - format: Stata display format
//   - desc: variable label
func (d *Dictionary) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(d.Variables))
	for i, v := range d.Variables {
		fields[i] = arrow.Field{
			Name:     v.Name,
			Type:     v.Kind.ArrowType(),
			Nullable: true,
			Metadata: arrow.NewMetadata(
				[]string{"start", "end", "format", "desc"},
				[]string{strconv.Itoa(v.Start), strconv.Itoa(v.End), v.Format, v.Desc},
			),
		}
	}
	return arrow.NewSchema(fields, nil)
}
