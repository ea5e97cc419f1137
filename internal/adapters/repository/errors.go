package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrNoCredentials = errors.New("no database credential succeeded")
	ErrSchemaInit    = errors.New("schema initialization failed")
	ErrInvalidInput  = errors.New("invalid storage input")
)
