package grading

import (
	"context"
	"strconv"
	"strings"

	"github.com/avorobey/autograder/internal/i18n"
	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/textutil"
)

// Weights for combining component scores. With rubric-required keywords the
// required share dominates; without, similarity and keyword coverage split
// the score.
const (
	shortSimWeight = 0.45
	shortKwWeight  = 0.55

	shortReqSimWeight = 0.30
	shortReqKwWeight  = 0.30
	shortReqWeight    = 0.40

	shortCorrectThreshold = 0.70
	essayCorrectThreshold = 0.60

	essayMinWords      = 20
	essayBriefFraction = 0.1

	// conceptCoverage is the share of extracted concept phrases an answer is
	// expected to mention for a full concept score.
	conceptCoverage = 0.3
)

// Algorithmic grades answers with TF-IDF similarity, keyword coverage and
// structural heuristics. It holds no per-call state: every grading call
// builds its own vectorizer, so one instance serves concurrent callers.
type Algorithmic struct{}

// NewAlgorithmic returns the algorithmic grading backend.
func NewAlgorithmic() *Algorithmic {
	return &Algorithmic{}
}

// Name identifies the backend in GradingResult.Method.
func (a *Algorithmic) Name() string { return "tfidf" }

// Grade routes the question by type. It always returns a result; unknown
// types yield zero points with zero confidence.
func (a *Algorithmic) Grade(ctx context.Context, q model.Question, in model.AnswerInput) model.GradingResult {
	switch q.Type {
	case model.QuestionMultipleChoice, model.QuestionTrueFalse:
		return a.gradeObjective(ctx, q, in.SelectedChoice)
	case model.QuestionShortAnswer:
		return a.gradeShortAnswer(ctx, q, in.Text)
	case model.QuestionEssay:
		return a.gradeEssay(ctx, q, in.Text)
	default:
		return model.GradingResult{
			MaxPoints:  q.Points,
			Feedback:   i18n.T(ctx, "UnknownQuestionType"),
			Confidence: 0.0,
			Method:     a.Name(),
		}
	}
}

// gradeObjective compares the selected choice index against the expected
// one. Objective grading is deterministic, so confidence is always 1.0.
func (a *Algorithmic) gradeObjective(ctx context.Context, q model.Question, selected *int) model.GradingResult {
	expected, err := strconv.Atoi(strings.TrimSpace(q.ExpectedAnswer))
	if err != nil {
		return model.GradingResult{
			MaxPoints:  q.Points,
			Feedback:   i18n.T(ctx, "InvalidAnswerFormat"),
			Confidence: 1.0,
			Method:     a.Name(),
		}
	}

	if selected != nil && *selected == expected {
		return model.GradingResult{
			PointsEarned: q.Points,
			MaxPoints:    q.Points,
			IsCorrect:    true,
			Feedback:     i18n.T(ctx, "Correct"),
			Confidence:   1.0,
			Method:       a.Name(),
		}
	}

	feedback := i18n.T(ctx, "Incorrect")
	if expected >= 0 && expected < len(q.Choices) {
		feedback = i18n.Td(ctx, "IncorrectWithAnswer", map[string]any{"Choice": q.Choices[expected]})
	}
	return model.GradingResult{
		MaxPoints:  q.Points,
		Feedback:   feedback,
		Confidence: 1.0,
		Method:     a.Name(),
	}
}

func (a *Algorithmic) gradeShortAnswer(ctx context.Context, q model.Question, answer string) model.GradingResult {
	student := textutil.Normalize(answer)
	expected := textutil.Normalize(q.ExpectedAnswer)

	if res, done := a.shortCircuit(ctx, q, student); done {
		return res
	}

	if student == expected {
		return model.GradingResult{
			PointsEarned: q.Points,
			MaxPoints:    q.Points,
			IsCorrect:    true,
			Feedback:     i18n.T(ctx, "PerfectAnswer"),
			Confidence:   1.0,
			Method:       a.Name(),
		}
	}

	reference := strings.TrimSpace(q.ExpectedAnswer + " " + q.Rubric)
	keywords := textutil.Keywords(reference)
	required := textutil.RequiredKeywords(q.Rubric)

	similarity := textutil.Similarity(student, expected)
	keywordScore := coverage(student, keywords, 0.5)
	requiredScore := coverage(student, required, 1.0)

	var combined float64
	if len(required) > 0 {
		combined = similarity*shortReqSimWeight + keywordScore*shortReqKwWeight + requiredScore*shortReqWeight
	} else {
		combined = similarity*shortSimWeight + keywordScore*shortKwWeight
	}
	combined = textutil.Clamp01(combined)

	return model.GradingResult{
		PointsEarned: round2(q.Points * combined),
		MaxPoints:    q.Points,
		IsCorrect:    combined >= shortCorrectThreshold,
		Feedback:     shortFeedback(ctx, combined, keywordScore, keywords, required, student),
		Confidence:   confidence(combined),
		Method:       a.Name(),
	}
}

func (a *Algorithmic) gradeEssay(ctx context.Context, q model.Question, answer string) model.GradingResult {
	student := textutil.Normalize(answer)

	if res, done := a.shortCircuit(ctx, q, student); done {
		return res
	}

	if textutil.WordCount(student) < essayMinWords {
		return model.GradingResult{
			PointsEarned: round2(q.Points * essayBriefFraction),
			MaxPoints:    q.Points,
			Feedback:     i18n.T(ctx, "EssayTooBrief"),
			Confidence:   0.9,
			Method:       a.Name(),
		}
	}

	reference := strings.TrimSpace(q.ExpectedAnswer + " " + q.Rubric)
	keywords := textutil.Keywords(reference)
	required := textutil.RequiredKeywords(q.Rubric)
	concepts := textutil.Concepts(reference)

	parts := essayComponents{
		similarity: textutil.Similarity(student, textutil.Normalize(reference)),
		keyword:    coverage(student, keywords, 0.5),
		concept:    conceptScore(student, concepts),
		length:     textutil.LengthScore(student, q.ExpectedAnswer),
		structure:  textutil.StructureScore(answer),
		required:   coverage(student, required, 1.0),
	}

	var combined float64
	if len(required) > 0 {
		combined = parts.similarity*0.20 + parts.keyword*0.20 + parts.concept*0.15 +
			parts.length*0.10 + parts.structure*0.05 + parts.required*0.30
	} else {
		combined = parts.similarity*0.30 + parts.keyword*0.25 + parts.concept*0.20 +
			parts.length*0.15 + parts.structure*0.10
	}
	combined = textutil.Clamp01(combined)

	return model.GradingResult{
		PointsEarned: round2(q.Points * combined),
		MaxPoints:    q.Points,
		IsCorrect:    combined >= essayCorrectThreshold,
		Feedback:     essayFeedback(ctx, combined, parts, keywords, required, student),
		Confidence:   confidence(combined) * 0.9,
		Method:       a.Name(),
	}
}

// shortCircuit handles the empty and gibberish cases shared by short-answer
// and essay grading.
func (a *Algorithmic) shortCircuit(ctx context.Context, q model.Question, student string) (model.GradingResult, bool) {
	if student == "" {
		return model.GradingResult{
			MaxPoints:  q.Points,
			Feedback:   i18n.T(ctx, "NoAnswer"),
			Confidence: 1.0,
			Method:     a.Name(),
		}, true
	}
	if textutil.IsGibberish(student) {
		return model.GradingResult{
			MaxPoints:  q.Points,
			Feedback:   i18n.T(ctx, "GibberishAnswer"),
			Confidence: 0.95,
			Method:     a.Name(),
		}, true
	}
	return model.GradingResult{}, false
}

// conceptScore measures multi-word phrase coverage. Full credit is reached
// at conceptCoverage of the extracted phrases; answers without concept data
// get a neutral 0.5.
func conceptScore(answer string, concepts []string) float64 {
	if len(concepts) == 0 {
		return 0.5
	}
	matches := 0
	for _, c := range concepts {
		if containsWord(answer, c) {
			matches++
		}
	}
	target := float64(len(concepts)) * conceptCoverage
	if target < 1 {
		target = 1
	}
	return textutil.Clamp01(float64(matches) / target)
}
