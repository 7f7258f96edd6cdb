package entity

import "time"

// AccountProfile is the application-level user record keyed by the Principal ID.
// A profile must never exist without its identity.
type AccountProfile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name,omitempty"`
	Role      Role       `json:"role"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// ProfileFilter narrows profile listings for the admin users table.
type ProfileFilter struct {
	Role   Role
	Limit  int
	Offset int
}
