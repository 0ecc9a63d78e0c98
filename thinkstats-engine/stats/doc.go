// Package stats computes summary statistics over Arrow record columns.
package stats
