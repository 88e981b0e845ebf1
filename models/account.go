package models

import "time"

// Role enumerates what an account is allowed to do.
type Role string

const (
	RoleStandard      Role = "standard"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdministrator
}

const (
	// DefaultSeedUsername is the administrator created on first boot when no
	// accounts exist. Deployments should override it in settings.
	DefaultSeedUsername = "admin"
	// DefaultSeedPassword pairs with DefaultSeedUsername.
	DefaultSeedPassword = "admin"
)

// Account is a login identity. The password verifier never leaves the
// accounts service, so it has no field here.
type Account struct {
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin returns true for administrator accounts.
func (a Account) IsAdmin() bool {
	return a.Role == RoleAdministrator
}

// Session is the persisted half of a login. The bearer token itself is only
// returned to the caller at issue time.
type Session struct {
	Username  string    `json:"username"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
