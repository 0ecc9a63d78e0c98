// Package data reads fixed-width survey files into Apache Arrow records.
// This package implements:
// - Stata dictionary (.dct) parsing and mapping to Arrow schemas
// - Fixed-width to Arrow conversion, with gzip support
// - Resource and parse error types shared by the loaders
package data
