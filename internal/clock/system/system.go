// Package system provides a real clock implementation. Snapshot
// timestamps and progress estimates take their time from here so tests
// can substitute a fixed clock.
package system

import "time"

// Clock yields UTC wall-clock time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
