// Package monitoring provides Prometheus metrics for loader and validation runs.
package monitoring
