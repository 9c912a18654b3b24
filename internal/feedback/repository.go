package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/prepvoice/prepvoice/internal/models"
)

// Repository defines persistence operations for feedback documents
type Repository interface {
	Upsert(ctx context.Context, fb *models.Feedback) (*models.Feedback, error)
	GetByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a repository for the given collection and
// ensures the (interviewId, userId) pair stays unique.
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "interviewId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = col.Indexes().CreateOne(ctx, idx)
	return &MongoRepository{col: col}
}

// Upsert writes the feedback for (interviewId, userId), replacing any
// previous evaluation of the same interview.
func (r *MongoRepository) Upsert(ctx context.Context, fb *models.Feedback) (*models.Feedback, error) {
	filter := bson.M{"interviewId": fb.InterviewID, "userId": fb.UserID}
	update := bson.M{
		"$set": bson.M{
			"totalScore":          fb.TotalScore,
			"categoryScores":      fb.CategoryScores,
			"strengths":           fb.Strengths,
			"areasForImprovement": fb.AreasForImprovement,
			"finalAssessment":     fb.FinalAssessment,
			"createdAt":           time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"_id":         uuid.NewString(),
			"interviewId": fb.InterviewID,
			"userId":      fb.UserID,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.Feedback
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *MongoRepository) GetByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	var fb models.Feedback
	filter := bson.M{"interviewId": interviewID, "userId": userID}
	if err := r.col.FindOne(ctx, filter).Decode(&fb); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &fb, nil
}
