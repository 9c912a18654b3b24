package models

import "time"

// Category names used in every feedback document, in scoring order.
const (
	CategoryCommunication  = "Communication Skills"
	CategoryTechnical      = "Technical Knowledge"
	CategoryProblemSolving = "Problem Solving"
	CategoryCulturalFit    = "Cultural Fit"
	CategoryConfidence     = "Confidence and Clarity"
)

// FeedbackCategories lists the fixed category names in presentation order.
var FeedbackCategories = []string{
	CategoryCommunication,
	CategoryTechnical,
	CategoryProblemSolving,
	CategoryCulturalFit,
	CategoryConfidence,
}

// CategoryScore is one scored dimension of an interview (0-100).
type CategoryScore struct {
	Name    string `bson:"name" json:"name"`
	Score   int    `bson:"score" json:"score"`
	Comment string `bson:"comment" json:"comment"`
}

// Feedback is the AI-generated evaluation of one interview transcript.
// At most one feedback document exists per (interviewId, userId) pair;
// re-scoring replaces the previous evaluation.
type Feedback struct {
	ID                  string          `bson:"_id,omitempty" json:"id"`
	InterviewID         string          `bson:"interviewId" json:"interviewId"`
	UserID              string          `bson:"userId" json:"userId"`
	TotalScore          int             `bson:"totalScore" json:"totalScore"`
	CategoryScores      []CategoryScore `bson:"categoryScores" json:"categoryScores"`
	Strengths           []string        `bson:"strengths" json:"strengths"`
	AreasForImprovement []string        `bson:"areasForImprovement" json:"areasForImprovement"`
	FinalAssessment     string          `bson:"finalAssessment" json:"finalAssessment"`
	CreatedAt           time.Time       `bson:"createdAt" json:"createdAt"`
}
