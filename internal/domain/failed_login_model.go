package domain

// FailedLogin is one failed authentication attempt. Rows are append-only:
// never updated, only inserted and pruned once older than the retention
// window.
type FailedLogin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	IPAddress string `gorm:"size:45;index:idx_failed_login_ip_time;not null"`

	DateAndTime TextTime `gorm:"index:idx_failed_login_ip_time;not null"`

	// Username as submitted, not necessarily an existing account.
	Username string `gorm:"size:255;not null;default:''"`

	// UserID is populated when the submitted username or email resolves to a
	// real account.
	UserID *uint64
}
