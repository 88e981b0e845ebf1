package models

// Identity is the caller resolved for a request: an account or anonymous.
// The zero value is anonymous.
type Identity struct {
	Account *Account
}

// Anonymous is the identity of a request without a valid session.
var Anonymous = Identity{}

// Authenticated reports whether the request carried a valid session.
func (i Identity) Authenticated() bool {
	return i.Account != nil
}

// Username returns the account username, or "" when anonymous.
func (i Identity) Username() string {
	if i.Account == nil {
		return ""
	}
	return i.Account.Username
}

// IsAdmin reports whether the identity is an administrator.
func (i Identity) IsAdmin() bool {
	return i.Account != nil && i.Account.IsAdmin()
}
