package sessions

import "time"

// Session represents a persistent refresh session. The refresh token is an
// opaque random value handed to the client at sign-in; the session expires
// server-side at ExpiresAt regardless of client behavior.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
