package model

import "strings"

// Role is the closed set of console roles. The slug form is what gets stored
// and put on the wire; display spellings are only accepted on input.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSuperUser Role = "super_user"
	RoleUser      Role = "user"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleSuperUser, RoleUser}
}

// ParseRole normalizes a role string. It accepts both the slug form and the
// display spellings used by the console UI ("Admin", "Super User", "User").
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "super_user", "super user", "superuser":
		return RoleSuperUser, true
	case "user":
		return RoleUser, true
	}
	return "", false
}

// Slug returns the stored form, used in module setting keys.
func (r Role) Slug() string {
	return string(r)
}

// Display returns the human-readable spelling shown by the console.
func (r Role) Display() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleSuperUser:
		return "Super User"
	case RoleUser:
		return "User"
	}
	return string(r)
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSuperUser, RoleUser:
		return true
	}
	return false
}

// Unlimited reports whether the role bypasses the quota ledger entirely.
// Admin and Super User accounts have no capacity bookkeeping.
func (r Role) Unlimited() bool {
	return r == RoleAdmin || r == RoleSuperUser
}

// CanAdminister reports whether an account with role r may edit accounts
// holding the target role. Privilege is not strictly linear: Admin acts on
// anyone, Super User acts on User accounts (and on its own account, which is
// checked by ID at the handler), User acts on nobody.
func (r Role) CanAdminister(target Role) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleSuperUser:
		return target == RoleUser
	}
	return false
}
