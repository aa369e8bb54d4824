package media

import "time"

// TicksPerSecond is the resolution of every position field on the wire.
const TicksPerSecond = 10_000_000

// Ticks is a media position or duration in 100ns units.
type Ticks int64

// TicksFromDuration converts a time.Duration to Ticks.
func TicksFromDuration(d time.Duration) Ticks {
	return Ticks(d / 100)
}

// TicksFromSeconds converts fractional seconds (as reported by most players) to Ticks.
func TicksFromSeconds(s float64) Ticks {
	return Ticks(s * TicksPerSecond)
}

// Duration returns the position as a time.Duration.
func (t Ticks) Duration() time.Duration {
	return time.Duration(t) * 100
}

// Seconds returns the position in fractional seconds.
func (t Ticks) Seconds() float64 {
	return float64(t) / TicksPerSecond
}

// String formats the position as a duration, e.g. "1h2m3s".
func (t Ticks) String() string {
	return t.Duration().Round(time.Second).String()
}
