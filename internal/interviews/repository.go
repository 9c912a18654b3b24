package interviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/prepvoice/prepvoice/internal/models"
)

// Repository defines persistence operations for interviews
type Repository interface {
	Create(ctx context.Context, iv *models.Interview) (*models.Interview, error)
	GetByID(ctx context.Context, id string) (*models.Interview, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Interview, error)
	ListLatest(ctx context.Context, excludeUserID string, limit int) ([]*models.Interview, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a repository for the given collection.
// Indexes back the two listing queries: per-user history and the shared
// latest feed (finalized interviews, newest first).
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "finalized", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, iv *models.Interview) (*models.Interview, error) {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, iv); err != nil {
		return nil, err
	}
	return iv, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	var iv models.Interview
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&iv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &iv, nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]*models.Interview, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.Interview{}
	for cur.Next(ctx) {
		var iv models.Interview
		if err := cur.Decode(&iv); err != nil {
			return nil, err
		}
		out = append(out, &iv)
	}
	return out, cur.Err()
}

func (r *MongoRepository) ListLatest(ctx context.Context, excludeUserID string, limit int) ([]*models.Interview, error) {
	filter := bson.M{"finalized": true}
	if excludeUserID != "" {
		filter["userId"] = bson.M{"$ne": excludeUserID}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.Interview{}
	for cur.Next(ctx) {
		var iv models.Interview
		if err := cur.Decode(&iv); err != nil {
			return nil, err
		}
		out = append(out, &iv)
	}
	return out, cur.Err()
}
