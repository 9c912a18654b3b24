package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/prepvoice/prepvoice/internal/models"
)

const scoreSystemPrompt = "You are a professional interviewer analyzing a mock interview. " +
	"Your task is to evaluate the candidate based on structured categories."

const scorePrompt = `You are an AI interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out.
Transcript:
%s

Please score the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:
- **Communication Skills**: Clarity, articulation, structured responses.
- **Technical Knowledge**: Understanding of key concepts for the role.
- **Problem Solving**: Ability to analyze problems and propose solutions.
- **Cultural Fit**: Alignment with company values and job role.
- **Confidence and Clarity**: Confidence in responses, engagement, and clarity.

Respond with a JSON object of this exact shape:
{
  "totalScore": 0,
  "categoryScores": [{"name": "Communication Skills", "score": 0, "comment": ""}],
  "strengths": [""],
  "areasForImprovement": [""],
  "finalAssessment": ""
}`

// ScoreResult is the model's evaluation of one transcript.
type ScoreResult struct {
	TotalScore          int                    `json:"totalScore"`
	CategoryScores      []models.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
}

// Scorer evaluates a formatted interview transcript.
type Scorer interface {
	Score(ctx context.Context, transcript string) (*ScoreResult, error)
}

// LLMScorer scores transcripts with a chat model.
type LLMScorer struct {
	llm llms.Model
}

// NewLLMScorer connects to an OpenAI-compatible endpoint.
// baseURL may be empty to use the provider default.
func NewLLMScorer(baseURL, apiKey, model string) (*LLMScorer, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return &LLMScorer{llm: llm}, nil
}

// NewScorerWithModel wraps an already constructed model.
func NewScorerWithModel(m llms.Model) *LLMScorer {
	return &LLMScorer{llm: m}
}

func (s *LLMScorer) Score(ctx context.Context, transcript string) (*ScoreResult, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, scoreSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(scorePrompt, transcript)),
	}

	resp, err := s.llm.GenerateContent(ctx, content, llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("transcript scoring failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("no response from model")
	}

	var res ScoreResult
	if err := json.Unmarshal([]byte(stripFence(resp.Choices[0].Content)), &res); err != nil {
		return nil, fmt.Errorf("malformed score from model: %w", err)
	}
	return &res, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
