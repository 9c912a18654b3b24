package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/prepvoice/prepvoice/internal/models"
	"github.com/prepvoice/prepvoice/pkg/metrics"
)

var (
	ErrValidation      = errors.New("interviewId and userId are required")
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Service turns call transcripts into stored feedback documents
type Service struct {
	repo   Repository
	scorer Scorer
}

func NewService(repo Repository, scorer Scorer) *Service {
	return &Service{repo: repo, scorer: scorer}
}

// CreateRequest carries everything needed to score one finished interview.
type CreateRequest struct {
	InterviewID string
	UserID      string
	Transcript  []models.TranscriptMessage
}

// CreateFromTranscript scores the transcript and upserts the feedback for
// (interviewId, userId). Re-scoring the same interview replaces the
// previous evaluation.
func (s *Service) CreateFromTranscript(ctx context.Context, req CreateRequest) (*models.Feedback, error) {
	if req.InterviewID == "" || req.UserID == "" {
		return nil, ErrValidation
	}
	if len(req.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}

	res, err := s.scorer.Score(ctx, FormatTranscript(req.Transcript))
	if err != nil {
		return nil, err
	}

	total, cats := normalizeScores(res)
	fb := &models.Feedback{
		InterviewID:         req.InterviewID,
		UserID:              req.UserID,
		TotalScore:          total,
		CategoryScores:      cats,
		Strengths:           res.Strengths,
		AreasForImprovement: res.AreasForImprovement,
		FinalAssessment:     res.FinalAssessment,
	}
	out, err := s.repo.Upsert(ctx, fb)
	if err != nil {
		return nil, err
	}
	metrics.FeedbackCreated.Inc()
	return out, nil
}

func (s *Service) GetByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	return s.repo.GetByInterview(ctx, interviewID, userID)
}

// FormatTranscript renders messages as the "- role: text" lines the scoring
// prompt expects.
func FormatTranscript(msgs []models.TranscriptMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "- %s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// normalizeScores forces the model output into the fixed category set, in
// order, with scores clamped to 0-100. A missing total is recomputed as the
// rounded category mean.
func normalizeScores(res *ScoreResult) (int, []models.CategoryScore) {
	byName := map[string]models.CategoryScore{}
	for _, c := range res.CategoryScores {
		byName[canonicalName(c.Name)] = c
	}

	cats := make([]models.CategoryScore, 0, len(models.FeedbackCategories))
	sum := 0
	for _, name := range models.FeedbackCategories {
		c := byName[canonicalName(name)]
		c.Name = name
		c.Score = clampScore(c.Score)
		cats = append(cats, c)
		sum += c.Score
	}

	total := clampScore(res.TotalScore)
	if total == 0 && sum > 0 {
		total = int(math.Round(float64(sum) / float64(len(cats))))
	}
	return total, cats
}

// canonicalName makes category matching robust against case, punctuation and
// "&" vs "and" variations in model output.
func canonicalName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "&", "and")
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
