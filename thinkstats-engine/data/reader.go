package data

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// Compression selects how a data file is decoded before parsing.
type Compression int

const (
	// CompressionAuto picks gzip for paths ending in .gz.
	CompressionAuto Compression = iota
	CompressionNone
	CompressionGzip
)

// maxLineSize bounds a single record line. NSFG respondent records are a few KB.
const maxLineSize = 1 << 20

// Reader converts fixed-width text to Arrow records.
type Reader struct {
	allocator   memory.Allocator
	dict        *Dictionary
	compression Compression
	nrows       int
	columns     []string
	logger      *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithAllocator sets the memory allocator used for record buffers.
func WithAllocator(mem memory.Allocator) ReaderOption {
	return func(r *Reader) { r.allocator = mem }
}

// WithCompression overrides compression detection.
func WithCompression(c Compression) ReaderOption {
	return func(r *Reader) { r.compression = c }
}

// WithNRows limits the number of records read. Zero or negative means no limit.
func WithNRows(n int) ReaderOption {
	return func(r *Reader) { r.nrows = n }
}

// WithColumns restricts the record to the named variables.
func WithColumns(names ...string) ReaderOption {
	return func(r *Reader) { r.columns = names }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ReaderOption {
	return func(r *Reader) { r.logger = logger }
}

// NewReader creates a Reader for the given layout with the default memory allocator.
func NewReader(dict *Dictionary, opts ...ReaderOption) *Reader {
	r := &Reader{
		allocator: memory.DefaultAllocator,
		dict:      dict,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile reads the data file at path. The file is closed before returning.
func (r *Reader) ReadFile(path string) (arrow.Record, error) {
	if _, err := r.layout(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	defer f.Close()

	var src io.Reader = f
	if r.compression == CompressionGzip ||
		(r.compression == CompressionAuto && strings.HasSuffix(path, ".gz")) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, &ResourceError{Path: path, Err: fmt.Errorf("failed to open gzip stream: %w", err)}
		}
		defer zr.Close()
		src = zr
	}

	record, err := r.Read(src)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, &ResourceError{Path: path, Err: err}
	}

	r.logger.Debug("fixed-width file loaded",
		zap.String("path", path),
		zap.Int64("rows", record.NumRows()),
		zap.Int64("columns", record.NumCols()))
	return record, nil
}

// Read parses fixed-width lines from src into a single Arrow record.
func (r *Reader) Read(src io.Reader) (arrow.Record, error) {
	dict, err := r.layout()
	if err != nil {
		return nil, err
	}

	builder := array.NewRecordBuilder(r.allocator, dict.ArrowSchema())
	defer builder.Release()

	appenders := make([]fieldAppender, dict.Len())
	for i, v := range dict.Variables {
		appenders[i] = newFieldAppender(v, builder.Field(i))
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo, rows := 0, 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if r.nrows > 0 && rows >= r.nrows {
			break
		}

		for i, v := range dict.Variables {
			raw := strings.TrimSpace(string(slice(line, v)))
			if err := appenders[i](raw); err != nil {
				return nil, &ParseError{Line: lineNo, Column: v.Name, Value: raw, Err: err}
			}
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line %d: %w", lineNo+1, err)
	}

	return builder.NewRecord(), nil
}

// layout returns the dictionary narrowed to the requested columns.
func (r *Reader) layout() (*Dictionary, error) {
	if len(r.columns) == 0 {
		return r.dict, nil
	}
	return r.dict.Select(r.columns...)
}

// slice returns the bytes of line covered by v. Fields past the end of a
// short line come back empty.
func slice(line []byte, v Variable) []byte {
	start := v.Start - 1
	if start >= len(line) {
		return nil
	}
	end := v.End - 1
	if v.End == 0 || end > len(line) {
		end = len(line)
	}
	if end < start {
		return nil
	}
	return line[start:end]
}

type fieldAppender func(raw string) error

func newFieldAppender(v Variable, b array.Builder) fieldAppender {
	switch v.Kind {
	case KindInt:
		ib := b.(*array.Int64Builder)
		return func(raw string) error {
			if raw == "" {
				ib.AppendNull()
				return nil
			}
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("not an integer: %w", err)
			}
			ib.Append(n)
			return nil
		}
	case KindFloat:
		fb := b.(*array.Float64Builder)
		return func(raw string) error {
			if raw == "" {
				fb.AppendNull()
				return nil
			}
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("not a number: %w", err)
			}
			fb.Append(f)
			return nil
		}
	default:
		sb := b.(*array.StringBuilder)
		return func(raw string) error {
			if raw == "" {
				sb.AppendNull()
				return nil
			}
			sb.Append(raw)
			return nil
		}
	}
}

// ValidateSchema checks that record has the fields of expected in the same
// order with the same name, type and nullability. Every metadata key set on an
// expected field must be present on the record's field with the same value, so
// a snapshot written with one dictionary layout fails against another.
func ValidateSchema(record arrow.Record, expected *arrow.Schema) error {
	if record == nil {
		return errors.New("record is nil")
	}

	actual := record.Schema()
	if actual.NumFields() != expected.NumFields() {
		return fmt.Errorf("field count mismatch: got %d, expected %d",
			actual.NumFields(), expected.NumFields())
	}

	for i, want := range expected.Fields() {
		got := actual.Field(i)

		if got.Name != want.Name {
			return fmt.Errorf("field %d name mismatch: got %s, expected %s", i, got.Name, want.Name)
		}
		if !arrow.TypeEqual(got.Type, want.Type) {
			return fmt.Errorf("field %s type mismatch: got %s, expected %s", got.Name, got.Type, want.Type)
		}
		if got.Nullable != want.Nullable {
			return fmt.Errorf("field %s nullability mismatch: got %t, expected %t", got.Name, got.Nullable, want.Nullable)
		}

		for j, key := range want.Metadata.Keys() {
			wantValue := want.Metadata.Values()[j]
			k := got.Metadata.FindKey(key)
			if k < 0 {
				return fmt.Errorf("field %s: missing %s metadata, expected %q", got.Name, key, wantValue)
			}
			if gotValue := got.Metadata.Values()[k]; gotValue != wantValue {
				return fmt.Errorf("field %s %s mismatch: got %q, expected %q", got.Name, key, gotValue, wantValue)
			}
		}
	}

	return nil
}
