// Package clock supplies "today" as a calendar date in the service's
// reference timezone.
package clock

import (
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
)

// Clock reports the current calendar date.
type Clock interface {
	Today() civil.Date
}

// System reads the wall clock and converts it to a date in loc.
type System struct {
	loc *time.Location
	now func() time.Time
}

// NewSystem returns a Clock backed by time.Now in the given location.
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.Local
	}
	return &System{loc: loc, now: time.Now}
}

// NewSystemFromName resolves an IANA timezone name ("Local" and "UTC" included).
func NewSystemFromName(name string) (*System, error) {
	loc, err := LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return NewSystem(loc), nil
}

// LoadLocation wraps time.LoadLocation, treating the empty name as Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Today implements Clock.
func (s *System) Today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

// Location returns the reference timezone.
func (s *System) Location() *time.Location {
	return s.loc
}

// Fixed is a settable Clock for tests.
type Fixed struct {
	mu    sync.Mutex
	today civil.Date
}

// NewFixed returns a Clock frozen at today.
func NewFixed(today civil.Date) *Fixed {
	return &Fixed{today: today}
}

// Today implements Clock.
func (f *Fixed) Today() civil.Date {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.today
}

// Set moves the clock to d.
func (f *Fixed) Set(d civil.Date) {
	f.mu.Lock()
	f.today = d
	f.mu.Unlock()
}

// Advance moves the clock forward by n days.
func (f *Fixed) Advance(n int) {
	f.mu.Lock()
	f.today = f.today.AddDays(n)
	f.mu.Unlock()
}
