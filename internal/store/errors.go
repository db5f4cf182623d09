package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHistory means the store holds no row for a code.
	ErrNoHistory = errors.New("no adjustment history")
	// ErrMissingCapability means the store lacks a required column (e.g. adjfactor).
	ErrMissingCapability = errors.New("missing capability")
)

// ConfigError reports an unusable store location or schema. Fatal at construction.
type ConfigError struct {
	Store  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s store: %s: %v", e.Store, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s store: %s", e.Store, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }
