package data

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrResourceNotFound matches a ResourceError whose file does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceError is returned when a dictionary or data file cannot be opened or read.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Is reports ErrResourceNotFound for missing files.
func (e *ResourceError) Is(target error) bool {
	return target == ErrResourceNotFound && errors.Is(e.Err, fs.ErrNotExist)
}

// ParseError is returned when a dictionary line or a data field does not
// conform to the declared layout.
type ParseError struct {
	Line   int    // 1-based line number in the source
	Column string // variable name, empty for dictionary syntax errors
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: invalid value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
