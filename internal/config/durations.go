package config

import "time"

// ShortLockout is the duration of a short lockout.
func (l LoginConfig) ShortLockout() time.Duration {
	return time.Duration(l.ShortLockoutMinutes) * time.Minute
}

// LongLockout is the duration of a long lockout.
func (l LoginConfig) LongLockout() time.Duration {
	return time.Duration(l.LongLockoutHours) * time.Hour
}

// ResetWindow is the rolling window inside which failed attempts count
// towards a lockout, and the retention span of bookkeeper rows.
func (l LoginConfig) ResetWindow() time.Duration {
	return time.Duration(l.ResetTimeoutHours) * time.Hour
}
