package interviews

import (
	"context"
	"errors"
	"strings"

	"github.com/prepvoice/prepvoice/internal/models"
	"github.com/prepvoice/prepvoice/pkg/metrics"
)

const defaultLatestLimit = 20

var ErrValidation = errors.New("role and userId are required")

// Service exposes interview listing and generation to the handler layer
type Service struct {
	repo Repository
	gen  QuestionGenerator
}

func NewService(repo Repository, gen QuestionGenerator) *Service {
	return &Service{repo: repo, gen: gen}
}

// ListByUser returns the user's own interviews, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*models.Interview, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Latest returns finalized interviews created by other users, newest first.
func (s *Service) Latest(ctx context.Context, excludeUserID string, limit int) ([]*models.Interview, error) {
	if limit <= 0 {
		limit = defaultLatestLimit
	}
	return s.repo.ListLatest(ctx, excludeUserID, limit)
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	return s.repo.GetByID(ctx, id)
}

// Generate asks the question generator for a question list and stores the
// resulting interview. Generated interviews are finalized immediately so
// they appear on the shared latest feed.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*models.Interview, error) {
	req.Role = strings.TrimSpace(req.Role)
	if req.UserID == "" || req.Role == "" {
		return nil, ErrValidation
	}
	if req.Type == "" {
		req.Type = "mixed"
	}

	questions, err := s.gen.Questions(ctx, req)
	if err != nil {
		return nil, err
	}

	iv := &models.Interview{
		UserID:     req.UserID,
		Role:       req.Role,
		Type:       req.Type,
		Level:      req.Level,
		Techstack:  req.Techstack,
		Questions:  questions,
		CoverImage: RandomCover(),
		Finalized:  true,
	}
	created, err := s.repo.Create(ctx, iv)
	if err != nil {
		return nil, err
	}
	metrics.QuestionsGenerated.Inc()
	return created, nil
}
