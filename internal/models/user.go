package models

import "time"

// User represents an application user. Accounts are created locally with an
// email/password pair; Sub is only populated for users provisioned through
// the optional OIDC sign-in path.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	Sub          string    `bson:"sub,omitempty" json:"sub,omitempty"` // OIDC subject
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}
