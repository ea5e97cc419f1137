package config

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")

	// ErrPartialOAuth means only one of the OAuth client id and secret is set.
	ErrPartialOAuth = errors.New("databricks client id and secret must be set together")
)
