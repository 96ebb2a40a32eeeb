package auth

import "time"

// Plan tiers.
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// User is an account record. The id is immutable; profile fields live on
// Profile and may change.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Plan         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile holds the mutable presentation fields for a user.
type Profile struct {
	UserID    string
	Name      string
	Company   string
	AvatarURL string
	UpdatedAt time.Time
}

// Identity is the resolved caller handed to route handlers.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
	Name  string `json:"name,omitempty"`
}
