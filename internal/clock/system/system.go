// Package system provides the clocks used to timestamp crawl runs.
package system

import "time"

// Clock reads the wall clock in UTC.
type Clock struct{}

// New returns a wall Clock.
func New() *Clock {
	return &Clock{}
}

// Now implements crawler.Clock.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports T, keeping report timestamps reproducible in tests.
type Fixed struct {
	T time.Time
}

// Now implements crawler.Clock.
func (f Fixed) Now() time.Time {
	return f.T
}
