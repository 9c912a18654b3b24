package models

// TranscriptMessage is one finalized line of an interview call transcript,
// accumulated by the session agent in call order.
type TranscriptMessage struct {
	Role    string `bson:"role" json:"role"` // user | assistant | system
	Content string `bson:"content" json:"content"`
}
