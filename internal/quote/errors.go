package quote

import (
	"errors"
	"fmt"
)

var (
	// ErrPreOpen marks a code whose quote was taken before the session opened.
	ErrPreOpen = errors.New("quote taken before session open")
	// ErrNotInSnapshot marks a code missing from the latest snapshot.
	ErrNotInSnapshot = errors.New("code not in latest snapshot")
)

// TransportError reports a failed feed fetch: timeout, bad status or malformed payload.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("feed %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
