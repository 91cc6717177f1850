// Package plagiarism flags near-duplicate answers across the submissions of
// one exam by pairwise TF-IDF cosine similarity.
package plagiarism

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/textutil"
)

const (
	// DefaultThreshold is the similarity at or above which a pair of answers
	// is flagged.
	DefaultThreshold = 0.85
	// corpusFeatures caps the vocabulary of each per-question corpus.
	corpusFeatures = 5000
	// minAnswerLength filters out answers too short to compare meaningfully.
	minAnswerLength = 20
)

// Detector runs cross-submission similarity checks. A Detector is stateless
// apart from its configuration and safe for concurrent use.
type Detector struct {
	Threshold float64
}

// NewDetector returns a Detector with the given flagging threshold;
// non-positive values select DefaultThreshold.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold}
}

// SubmissionAnswers is the view of one submission the detector needs.
type SubmissionAnswers struct {
	SubmissionID int64
	StudentName  string
	Answers      []model.Answer
}

// FlaggedPair records two answers to the same question whose similarity
// reached the threshold.
type FlaggedPair struct {
	QuestionID        int64   `json:"question_id"`
	SubmissionA       int64   `json:"submission_a"`
	StudentA          string  `json:"student_a"`
	SubmissionB       int64   `json:"submission_b"`
	StudentB          string  `json:"student_b"`
	Similarity        float64 `json:"similarity"`
	SimilarityPercent float64 `json:"similarity_percent"`
}

// SubmissionScore aggregates the flags involving one submission.
type SubmissionScore struct {
	MaxSimilarity float64 `json:"max_similarity"`
	AvgSimilarity float64 `json:"avg_similarity"`
	FlagCount     int     `json:"flag_count"`
}

// Report is the outcome of checking one exam's submissions.
type Report struct {
	FlaggedPairs       []FlaggedPair             `json:"flagged_pairs"`
	SubmissionScores   map[int64]SubmissionScore `json:"submission_scores"`
	TotalChecked       int                       `json:"total_checked"`
	PlagiarismDetected bool                      `json:"plagiarism_detected"`
}

// answerRef is one qualifying answer within a question group.
type answerRef struct {
	submissionID int64
	studentName  string
	text         string
}

// CheckSubmissions compares every pair of qualifying answers per question
// and aggregates the flags. Questions are independent and are processed
// concurrently; a question whose batch cannot be vectorized contributes no
// flags without failing the report.
func (d *Detector) CheckSubmissions(subs []SubmissionAnswers) Report {
	report := Report{SubmissionScores: make(map[int64]SubmissionScore)}

	groups := make(map[int64][]answerRef)
	for _, sub := range subs {
		for _, ans := range sub.Answers {
			text := strings.TrimSpace(ans.Text)
			if len(text) <= minAnswerLength {
				continue
			}
			groups[ans.QuestionID] = append(groups[ans.QuestionID], answerRef{
				submissionID: sub.SubmissionID,
				studentName:  sub.StudentName,
				text:         ans.Text,
			})
		}
	}

	// Stable question order keeps reports deterministic.
	questionIDs := make([]int64, 0, len(groups))
	for id, answers := range groups {
		if len(answers) < 2 {
			continue
		}
		questionIDs = append(questionIDs, id)
	}
	sort.Slice(questionIDs, func(i, j int) bool { return questionIDs[i] < questionIDs[j] })

	flagsPerQuestion := make([][]FlaggedPair, len(questionIDs))
	var wg sync.WaitGroup
	for i, id := range questionIDs {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			flagsPerQuestion[i] = d.checkQuestion(id, groups[id])
		}(i, id)
	}
	wg.Wait()

	for i, id := range questionIDs {
		report.FlaggedPairs = append(report.FlaggedPairs, flagsPerQuestion[i]...)
		report.TotalChecked += len(groups[id])
	}

	perSubmission := make(map[int64][]float64)
	for _, pair := range report.FlaggedPairs {
		perSubmission[pair.SubmissionA] = append(perSubmission[pair.SubmissionA], pair.Similarity)
		perSubmission[pair.SubmissionB] = append(perSubmission[pair.SubmissionB], pair.Similarity)
	}
	for id, sims := range perSubmission {
		maxSim, sum := 0.0, 0.0
		for _, s := range sims {
			if s > maxSim {
				maxSim = s
			}
			sum += s
		}
		report.SubmissionScores[id] = SubmissionScore{
			MaxSimilarity: round2(maxSim * 100),
			AvgSimilarity: round2(sum / float64(len(sims)) * 100),
			FlagCount:     len(sims),
		}
	}

	report.PlagiarismDetected = len(report.FlaggedPairs) > 0
	return report
}

// checkQuestion builds one TF-IDF corpus over a question's answers and
// flags every pair at or above the threshold.
func (d *Detector) checkQuestion(questionID int64, answers []answerRef) []FlaggedPair {
	texts := make([]string, len(answers))
	for i, a := range answers {
		texts[i] = a.text
	}

	vec := textutil.NewVectorizer(corpusFeatures, false)
	vectors, err := vec.FitTransform(texts)
	if err != nil {
		slog.Warn("skipping question in plagiarism check", "question_id", questionID, "error", err)
		return nil
	}

	var flagged []FlaggedPair
	for i := 0; i < len(answers); i++ {
		for j := i + 1; j < len(answers); j++ {
			similarity := textutil.Clamp01(textutil.Cosine(vectors[i], vectors[j]))
			if similarity < d.Threshold {
				continue
			}
			flagged = append(flagged, FlaggedPair{
				QuestionID:        questionID,
				SubmissionA:       answers[i].submissionID,
				StudentA:          answers[i].studentName,
				SubmissionB:       answers[j].submissionID,
				StudentB:          answers[j].studentName,
				Similarity:        round4(similarity),
				SimilarityPercent: round2(similarity * 100),
			})
		}
	}
	return flagged
}

// CompareTexts scores two specific texts against each other. Degenerate
// input yields 0 rather than an error.
func (d *Detector) CompareTexts(a, b string) float64 {
	return round4(textutil.Similarity(a, b))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
