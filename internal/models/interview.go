package models

import "time"

// Interview is a generated mock-interview document: the role/level/stack the
// user asked for plus the question list the generator produced. Finalized
// interviews are visible to other users on the "latest" listing.
type Interview struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	UserID     string    `bson:"userId" json:"userId"`
	Role       string    `bson:"role" json:"role"`
	Type       string    `bson:"type" json:"type"` // technical | behavioural | mixed
	Level      string    `bson:"level" json:"level"`
	Techstack  []string  `bson:"techstack" json:"techstack"`
	Questions  []string  `bson:"questions" json:"questions"`
	CoverImage string    `bson:"coverImage" json:"coverImage"`
	Finalized  bool      `bson:"finalized" json:"finalized"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}
