package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	ExamID    int64           `json:"exam_id"`
	Title     string          `json:"title"`
	Backend   string          `json:"grading_backend"`
	Generated time.Time       `json:"generated_at"`
	Results   []StudentResult `json:"results"`
}

// StudentResult holds one student's submission data for export.
type StudentResult struct {
	StudentID      int64            `json:"student_id"`
	DisplayName    string           `json:"display_name"`
	Status         SubmissionStatus `json:"status"`
	StartedAt      time.Time        `json:"started_at"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
	Score          float64          `json:"score"`
	Percentage     float64          `json:"percentage"`
	Passed         bool             `json:"passed"`
	SuspicionScore int              `json:"suspicion_score"`
	Answers        []AnswerResult   `json:"answers"`
}

// AnswerResult holds per-question grading data for export.
type AnswerResult struct {
	QuestionID   int64        `json:"question_id"`
	QuestionText string       `json:"question_text"`
	Type         QuestionType `json:"type"`
	MaxPoints    float64      `json:"max_points"`
	PointsEarned float64      `json:"points_earned"`
	IsCorrect    bool         `json:"is_correct"`
	Confidence   float64      `json:"confidence"`
	Method       string       `json:"grading_method"`
	Feedback     string       `json:"feedback"`
}
