package domain

// AccessScope is the category of access a blocklist entry protects.
//
// ScopeAny is a query sentinel meaning "no scope filter"; it is never
// persisted and must not be passed to gate checks.
type AccessScope uint8

const (
	ScopeAny      AccessScope = 0
	ScopeAdmin    AccessScope = 1
	ScopeComments AccessScope = 2
	ScopeWebsite  AccessScope = 3
)

// Valid reports whether the scope is a concrete, persistable scope.
func (s AccessScope) Valid() bool {
	return s == ScopeAdmin || s == ScopeComments || s == ScopeWebsite
}

func (s AccessScope) String() string {
	switch s {
	case ScopeAny:
		return "any"
	case ScopeAdmin:
		return "admin"
	case ScopeComments:
		return "comments"
	case ScopeWebsite:
		return "website"
	}
	return "unknown"
}
