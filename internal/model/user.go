// Package model holds the domain types shared by every layer. They double as
// the JSON wire format of the HTTP API.
package model

import "time"

// Role is the part a user plays in the marketplace.
type Role string

const (
	RoleDonor    Role = "DONOR"
	RoleReceiver Role = "RECEIVER"
)

// Valid reports whether r is one of the recognised roles.
func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleReceiver
}

// User is a marketplace participant. The ID is issued by the identity
// provider (it is the subject of the caller's token), never generated here.
type User struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Location  *Location `json:"location"` // nil until onboarding completes
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Participant is the public projection of a user embedded in posts, chats
// and requests.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
