package interviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultQuestionCount = 5

// questions are spoken by the voice agent, so the model is told to avoid
// characters that trip up speech synthesis
const questionPrompt = `Prepare questions for a job interview.
The job role is %s.
The job experience level is %s.
The tech stack used in the job is: %s.
The focus between behavioural and technical questions should lean towards: %s.
The amount of questions required is: %d.
Please return only the questions, without any additional text.
The questions are going to be read by a voice assistant so do not use "/" or "*" or any other special characters which might break the voice assistant.
Return the questions formatted like this:
["Question 1", "Question 2", "Question 3"]`

// GenerateRequest describes the interview a user asked for.
type GenerateRequest struct {
	UserID    string
	Role      string
	Type      string
	Level     string
	Techstack []string
	Amount    int
}

// QuestionGenerator produces the question list for an interview request.
type QuestionGenerator interface {
	Questions(ctx context.Context, req GenerateRequest) ([]string, error)
}

// LLMQuestionGenerator generates interview questions with a chat model.
type LLMQuestionGenerator struct {
	llm llms.Model
}

// NewLLMQuestionGenerator connects to an OpenAI-compatible endpoint.
// baseURL may be empty to use the provider default.
func NewLLMQuestionGenerator(baseURL, apiKey, model string) (*LLMQuestionGenerator, error) {
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
	return &LLMQuestionGenerator{llm: llm}, nil
}

// NewQuestionGeneratorWithModel wraps an already constructed model.
func NewQuestionGeneratorWithModel(m llms.Model) *LLMQuestionGenerator {
	return &LLMQuestionGenerator{llm: m}
}

func (g *LLMQuestionGenerator) Questions(ctx context.Context, req GenerateRequest) ([]string, error) {
	amount := req.Amount
	if amount <= 0 {
		amount = defaultQuestionCount
	}
	prompt := fmt.Sprintf(questionPrompt, req.Role, req.Level, strings.Join(req.Techstack, ", "), req.Type, amount)
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a professional job interviewer preparing interview questions."),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := g.llm.GenerateContent(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("question generation failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("no response from model")
	}
	return parseQuestions(resp.Choices[0].Content)
}

// parseQuestions decodes the model output (a JSON string array, possibly
// wrapped in a markdown fence) and sanitizes each entry.
func parseQuestions(raw string) ([]string, error) {
	var qs []string
	if err := json.Unmarshal([]byte(stripFence(raw)), &qs); err != nil {
		return nil, fmt.Errorf("malformed question list from model: %w", err)
	}
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		if q = SanitizeQuestion(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no usable questions")
	}
	return out, nil
}

// SanitizeQuestion strips characters known to break speech synthesis and
// collapses the resulting whitespace.
func SanitizeQuestion(q string) string {
	q = strings.ReplaceAll(q, "/", " ")
	q = strings.ReplaceAll(q, "*", " ")
	return strings.Join(strings.Fields(q), " ")
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
