package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avorobey/autograder/internal/model"
)

// DefaultTimeout bounds a single remote grading call.
const DefaultTimeout = 30 * time.Second

// Remote grades free-text answers through an OpenAI-compatible API.
// Objective questions are never delegated remotely, and any remote failure
// falls back to the algorithmic grader with the result's method marked
// accordingly.
type Remote struct {
	api      *openai.Client
	model    string
	timeout  time.Duration
	fallback *Algorithmic
}

// NewRemote creates the remote grading backend.
func NewRemote(baseURL, apiKey, modelName string, timeout time.Duration) *Remote {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		timeout:  timeout,
		fallback: NewAlgorithmic(),
	}
}

// Name identifies the backend and model in GradingResult.Method.
func (r *Remote) Name() string { return "llm_" + r.model }

// Ping verifies the endpoint is reachable before serving traffic.
func (r *Remote) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint: %w", err)
	}
	return nil
}

// Grade delegates short-answer and essay grading to the model. Everything
// else, and every failure, goes through the algorithmic path.
func (r *Remote) Grade(ctx context.Context, q model.Question, in model.AnswerInput) model.GradingResult {
	if q.Type.IsObjective() {
		res := r.fallback.Grade(ctx, q, in)
		res.Method = r.Name()
		return res
	}

	res, err := r.gradeRemote(ctx, q, in.Text)
	if err != nil {
		slog.Error("LLM grading failed, using algorithmic fallback", "model", r.model, "error", err)
		res = r.fallback.Grade(ctx, q, in)
		res.Method = r.Name() + "_fallback"
	}
	return res
}

// remoteVerdict is the JSON object the model is instructed to return.
type remoteVerdict struct {
	ScorePercentage float64  `json:"score_percentage"`
	IsCorrect       *bool    `json:"is_correct"`
	Feedback        string   `json:"feedback"`
	Confidence      *float64 `json:"confidence"`
}

func (r *Remote) gradeRemote(ctx context.Context, q model.Question, answer string) (model.GradingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: gradingSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildGradingPrompt(q, answer)},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return model.GradingResult{}, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.GradingResult{}, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM grading response", "raw", raw)

	var verdict remoteVerdict
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &verdict); err != nil {
		return model.GradingResult{}, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}

	pct := verdict.ScorePercentage
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	isCorrect := pct >= 60
	if verdict.IsCorrect != nil {
		isCorrect = *verdict.IsCorrect
	}
	conf := 0.8
	if verdict.Confidence != nil {
		conf = *verdict.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
	}
	feedback := verdict.Feedback
	if feedback == "" {
		feedback = "Graded by AI"
	}

	return model.GradingResult{
		PointsEarned: round2(pct / 100 * q.Points),
		MaxPoints:    q.Points,
		IsCorrect:    isCorrect,
		Feedback:     feedback,
		Confidence:   conf,
		Method:       r.Name(),
	}, nil
}

const gradingSystemPrompt = `Grade the answer. Respond with JSON only:
{"score_percentage": <0-100>, "is_correct": <bool>, "feedback": "<string>", "confidence": <0.0-1.0>}`

func buildGradingPrompt(q model.Question, answer string) string {
	var sb strings.Builder
	sb.WriteString("Type: " + string(q.Type) + "\n")
	fmt.Fprintf(&sb, "Max Points: %g\n", q.Points)
	sb.WriteString("Expected: " + q.ExpectedAnswer + "\n")
	rubric := q.Rubric
	if rubric == "" {
		rubric = "Standard criteria"
	}
	sb.WriteString("Rubric: " + rubric + "\n")
	sb.WriteString("Student Answer: " + answer)
	return sb.String()
}

// stripCodeFences unwraps a JSON payload the model wrapped in a Markdown
// code block.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}
