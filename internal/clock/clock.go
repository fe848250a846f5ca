package clock

import "time"

// Clock provides the current instant. All past/future/today decisions in the
// scheduling code go through it so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// System is the host clock.
type System struct{}

// Now returns the current host time.
func (System) Now() time.Time { return time.Now() }

// Fixed is a controllable clock for tests.
type Fixed struct {
	Time time.Time
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time { return f.Time }

// Advance moves the pinned instant forward.
func (f *Fixed) Advance(d time.Duration) { f.Time = f.Time.Add(d) }

// DayBounds returns the inclusive start and exclusive end of the day
// containing t, in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.Add(24 * time.Hour)
}
