// Package grading scores student answers. The algorithmic backend combines
// TF-IDF similarity, keyword coverage and structural heuristics; the remote
// backend delegates free-text grading to an OpenAI-compatible model and
// falls back to the algorithmic path on any failure.
package grading

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/avorobey/autograder/internal/model"
)

// Service grades a single answer. Implementations never fail: malformed
// input degrades to a zero-points, explained result.
type Service interface {
	Grade(ctx context.Context, q model.Question, in model.AnswerInput) model.GradingResult
	Name() string
}

// BackendLLM selects the remote model-backed grader; anything else selects
// the algorithmic one.
const BackendLLM = "llm"

// Config selects and parameterizes the grading backend. It is read from
// flags and environment in cmd and passed down explicitly.
type Config struct {
	Backend string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New constructs the Service selected by cfg. The service is built once per
// process and shared; all its methods are safe for concurrent use.
func New(cfg Config) Service {
	if cfg.Backend == BackendLLM {
		return NewRemote(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	}
	return NewAlgorithmic()
}

// round2 rounds to two decimal places, the precision points are stored at.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// confidence maps a combined score to grading confidence: clear-cut results
// (very high or very low) are trusted more than mid-range ones.
func confidence(score float64) float64 {
	switch {
	case score >= 0.85 || score <= 0.15:
		return 0.95
	case score >= 0.70 || score <= 0.30:
		return 0.85
	default:
		return 0.70
	}
}

// containsWord reports whether the answer mentions the keyword as a
// substring, matching case-insensitively.
func containsWord(answer, keyword string) bool {
	return strings.Contains(strings.ToLower(answer), keyword)
}

// coverage returns the fraction of keywords present in the answer, or
// fallback when the list is empty.
func coverage(answer string, keywords []string, fallback float64) float64 {
	if len(keywords) == 0 {
		return fallback
	}
	matches := 0
	for _, kw := range keywords {
		if containsWord(answer, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// missingKeywords returns up to limit keywords absent from the answer.
func missingKeywords(answer string, keywords []string, limit int) []string {
	var missing []string
	for _, kw := range keywords {
		if !containsWord(answer, kw) {
			missing = append(missing, kw)
			if len(missing) == limit {
				break
			}
		}
	}
	return missing
}
