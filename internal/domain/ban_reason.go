package domain

// BanReason records why an IP was placed on the internal blocklist.
type BanReason uint8

const (
	ReasonLoginLockoutShort  BanReason = 1
	ReasonLoginLockoutLong   BanReason = 2
	ReasonUsernameOnDenylist BanReason = 3
	ReasonManuallyBlocked    BanReason = 4
	ReasonBadRequestBan      BanReason = 5
)

func (r BanReason) String() string {
	switch r {
	case ReasonLoginLockoutShort:
		return "login_lockout_short"
	case ReasonLoginLockoutLong:
		return "login_lockout_long"
	case ReasonUsernameOnDenylist:
		return "username_on_denylist"
	case ReasonManuallyBlocked:
		return "manually_blocked"
	case ReasonBadRequestBan:
		return "bad_request_ban"
	}
	return "unknown"
}
