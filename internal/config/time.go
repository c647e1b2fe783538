package config

import "time"

// Timer expresses a configured interval in calendar-friendly fields.
type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

// Duration converts the timer to a time.Duration, enforcing a one-second
// minimum so a zero timer can never produce a busy loop.
func (t Timer) Duration() time.Duration {
	ms := t.Milliseconds()

	minInterval := uint64(1000)
	if ms < minInterval {
		ms = minInterval
	}

	return time.Duration(ms) * time.Millisecond
}

// Milliseconds is the raw total of the timer fields.
func (t Timer) Milliseconds() uint64 {
	return uint64(t.Days)*24*60*60*1000 +
		uint64(t.Hours)*60*60*1000 +
		uint64(t.Minutes)*60*1000 +
		uint64(t.Seconds)*1000
}

// DurationOr returns the timer's duration, or fallback when the timer is
// unset.
func (t Timer) DurationOr(fallback time.Duration) time.Duration {
	if t.IsZero() {
		return fallback
	}
	return t.Duration()
}
