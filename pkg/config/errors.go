package config

import "errors"

// Sentinel errors for the Config Loader, mirroring spec.md's error kinds.
var (
	// ErrPathNotFound is returned when the configured path does not exist.
	ErrPathNotFound = errors.New("configuration path not found")
	// ErrInvalidConfiguration is returned when a document fails schema
	// validation (missing required field, malformed rule shape).
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmptyConfiguration is returned when loading succeeds but yields
	// zero rules.
	ErrEmptyConfiguration = errors.New("configuration is empty")
)
