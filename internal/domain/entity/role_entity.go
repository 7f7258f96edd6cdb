package entity

import "strings"

// Role is the authorization role stored on an account profile.
type Role string

const (
	RoleRoot   Role = "root"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// RoleTag is the role requested at registration time. It is not stored as-is;
// see ResolveRole.
type RoleTag string

const (
	RoleTagRoot    RoleTag = "root"
	RoleTagRegular RoleTag = "regular"
)

// ResolveRole narrows a requested tag to the stored role: the root tag keeps
// root, every other tag collapses to admin.
func ResolveRole(tag RoleTag) Role {
	if RoleTag(strings.ToLower(strings.TrimSpace(string(tag)))) == RoleTagRoot {
		return RoleRoot
	}
	return RoleAdmin
}

// Valid reports whether r is one of the stored roles.
func (r Role) Valid() bool {
	switch r {
	case RoleRoot, RoleAdmin, RoleEditor:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
