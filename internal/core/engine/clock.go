package engine

import (
	"time"
)

// DefaultTimezone is the reference timezone for overdue and penalty math.
const DefaultTimezone = "Asia/Manila"

// Clock supplies the current instant and the current calendar date in the
// reference timezone.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// ReferenceClock is the wall clock viewed from a fixed location
type ReferenceClock struct {
	loc *time.Location
}

// NewReferenceClock creates a wall clock in loc.
func NewReferenceClock(loc *time.Location) *ReferenceClock {
	if loc == nil {
		loc = ManilaLocation()
	}
	return &ReferenceClock{loc: loc}
}

// Now returns the current instant in the reference location.
func (c *ReferenceClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Today returns midnight of the current date in the reference location.
func (c *ReferenceClock) Today() time.Time {
	return midnight(c.Now())
}

// Location returns the reference location.
func (c *ReferenceClock) Location() *time.Location {
	return c.loc
}

// LoadLocation resolves a timezone name. Asia/Manila is UTC+8 with no DST, so
// when tzdata is missing it falls back to a fixed +08:00 zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == DefaultTimezone {
			return time.FixedZone("PHT", 8*60*60), nil
		}
		return nil, err
	}
	return loc, nil
}

// ManilaLocation returns the default reference location.
func ManilaLocation() *time.Location {
	loc, _ := LoadLocation(DefaultTimezone)
	return loc
}

// FixedClock always reports the same instant. Used for deterministic tests
// and for back-dated batch runs.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// Today returns midnight of the fixed instant's date.
func (c FixedClock) Today() time.Time { return midnight(c.T) }

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
