// Package arrow stores loaded survey tables in the Arrow IPC stream format,
// so a parsed snapshot can be reopened without re-reading the fixed-width file.
package arrow
