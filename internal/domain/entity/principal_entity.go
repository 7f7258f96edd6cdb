package entity

import "time"

// Principal is an authenticated identity owned by the auth side.
// Holders keep a cached reference only; the auth side stays the source of truth.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Identity is the stored credential behind a Principal.
// PasswordHash is a bcrypt hash.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the public view of the identity.
func (i *Identity) Principal() *Principal {
	if i == nil {
		return nil
	}
	return &Principal{ID: i.ID, Email: i.Email}
}
