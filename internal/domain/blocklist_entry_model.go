package domain

import "time"

// BlocklistEntry is one internal blocklist record. At most one row exists per
// (scope, ip_address, reason) triple; re-locking the same triple refreshes
// BanTime/ReleaseTime in place.
type BlocklistEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Scope AccessScope `gorm:"uniqueIndex:idx_blocklist_triple;not null"`

	// IPAddress holds the IPv4 or IPv6 literal as received from the host.
	IPAddress string `gorm:"size:45;uniqueIndex:idx_blocklist_triple;not null"`

	BanTime     TextTime `gorm:"not null"`
	ReleaseTime TextTime `gorm:"not null;index"`

	Reason BanReason `gorm:"uniqueIndex:idx_blocklist_triple;not null"`

	Comment string `gorm:"size:512;not null;default:''"`
}

// Active reports whether the entry still denies access at the given instant.
func (e BlocklistEntry) Active(now time.Time) bool {
	return e.ReleaseTime.After(now.UTC().Truncate(time.Second))
}
