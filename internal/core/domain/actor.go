package domain

import "time"

type Role string

const (
	RoleOwner    Role = "owner"
	RoleEmployee Role = "employee"
)

// Actor is the authenticated caller resolved from an API key.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// APIKey maps a hashed token to an actor.
type APIKey struct {
	TokenHash string
	ActorID   string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// CompanyRef identifies the company an entity belongs to, together with the
// owning actor. Entities expose it through OwningCompany so scope checks never
// need to probe concrete types.
type CompanyRef struct {
	ID      string
	Name    string
	OwnerID string
}

// Owned is implemented by every entity that belongs to a company.
type Owned interface {
	OwningCompany() CompanyRef
}
