// Package config loads runtime settings from defaults, an optional config
// file, THINKSTATS_* environment variables and command-line flags.
package config
