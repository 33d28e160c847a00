package clock

import "time"

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// RealClock uses the system clock
type RealClock struct{}

var _ Clock = RealClock{}

// Now returns the current UTC time
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
