package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoPlatform is returned when no platform is selected.
	ErrNoPlatform = errors.New("no platform specified: use --platform")

	// ErrNoTarget is returned when neither a positional argument nor --list
	// provides a target.
	ErrNoTarget = errors.New("no target specified: provide a phone number or use --list")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --markdown and
	// --table are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --markdown and --table cannot be used together")

	// ErrConflictingTorOptions is returned when both --tor and
	// --external-tor are specified.
	ErrConflictingTorOptions = errors.New("conflicting tor options: --tor and --external-tor cannot be used together")

	// ErrInvalidTimeout is returned when a timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrNoDBDir is returned when history is enabled without a directory.
	ErrNoDBDir = errors.New("no database directory: set --db-dir or use --no-history")
)
