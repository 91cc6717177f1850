package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// QuestionType identifies how a question is answered and graded.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

// IsObjective reports whether the question has a single correct choice index.
func (t QuestionType) IsObjective() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusInProgress SubmissionStatus = "in_progress"
	StatusSubmitted  SubmissionStatus = "submitted"
	StatusGrading    SubmissionStatus = "grading"
	StatusGraded     SubmissionStatus = "graded"
	StatusFlagged    SubmissionStatus = "flagged"
)

// Exam groups questions and carries the proctoring policy applied to
// submissions.
type Exam struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	DurationMinutes int     `json:"duration_minutes"`
	MaxTabSwitches  int     `json:"max_tab_switches"`
	AllowCopyPaste  bool    `json:"allow_copy_paste"`
	PassThreshold   float64 `json:"pass_threshold"`
}

// Question represents a single exam question. ExpectedAnswer holds the
// correct choice index (as a string) for objective types and the reference
// answer text otherwise.
type Question struct {
	ID             int64        `json:"id"`
	ExamID         int64        `json:"exam_id"`
	Type           QuestionType `json:"type"`
	Text           string       `json:"text"`
	Points         float64      `json:"points"`
	Choices        []string     `json:"choices,omitempty"`
	ExpectedAnswer string       `json:"expected_answer"`
	Rubric         string       `json:"rubric"`
	Position       int          `json:"position"`
}

// AnswerInput is what a student hands in for one question.
type AnswerInput struct {
	Text           string `json:"text"`
	SelectedChoice *int   `json:"selected_choice,omitempty"`
}

// GradingResult is the outcome of grading a single answer. It is created
// fresh on every grading call and never mutated afterwards.
type GradingResult struct {
	PointsEarned float64 `json:"points_earned"`
	MaxPoints    float64 `json:"max_points"`
	IsCorrect    bool    `json:"is_correct"`
	Feedback     string  `json:"feedback"`
	Confidence   float64 `json:"confidence"`
	Method       string  `json:"grading_method"`
}

// Percentage returns the earned share of the maximum as a percentage.
func (r GradingResult) Percentage() float64 {
	if r.MaxPoints == 0 {
		return 0
	}
	return r.PointsEarned / r.MaxPoints * 100
}

// Answer is a stored student answer together with its grading outcome.
type Answer struct {
	ID             int64      `json:"id"`
	SubmissionID   int64      `json:"submission_id"`
	QuestionID     int64      `json:"question_id"`
	Text           string     `json:"text"`
	SelectedChoice *int       `json:"selected_choice,omitempty"`
	PointsEarned   float64    `json:"points_earned"`
	IsCorrect      bool       `json:"is_correct"`
	Feedback       string     `json:"feedback"`
	Confidence     float64    `json:"confidence"`
	Method         string     `json:"grading_method"`
	GradedAt       *time.Time `json:"graded_at,omitempty"`
}

// Submission is one student's attempt at an exam, including the proctoring
// telemetry collected by the exam client.
type Submission struct {
	ID          int64            `json:"id"`
	ExamID      int64            `json:"exam_id"`
	StudentID   int64            `json:"student_id"`
	Status      SubmissionStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	GradedAt    *time.Time       `json:"graded_at,omitempty"`

	Score      *float64 `json:"score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Passed     *bool    `json:"passed,omitempty"`

	IPAddress        string   `json:"ip_address,omitempty"`
	IPChanged        bool     `json:"ip_changed_during_exam"`
	TimeTakenSeconds int      `json:"time_taken_seconds"`
	TabSwitches      int      `json:"tab_switch_count"`
	FocusLost        int      `json:"focus_lost_count"`
	CopyPasteEvents  int      `json:"copy_paste_attempts"`
	ShortcutEvents   int      `json:"keyboard_shortcut_attempts"`
	Flags            []string `json:"suspicious_activity_flags,omitempty"`
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Type           QuestionType `json:"type"`
	Text           string       `json:"text"`
	Points         float64      `json:"points"`
	Choices        []string     `json:"choices,omitempty"`
	ExpectedAnswer string       `json:"expected_answer"`
	Rubric         string       `json:"rubric"`
}

// ExamImport is the top-level JSON structure for loading an exam file.
type ExamImport struct {
	Title           string           `json:"title"`
	DurationMinutes int              `json:"duration_minutes"`
	MaxTabSwitches  int              `json:"max_tab_switches"`
	AllowCopyPaste  bool             `json:"allow_copy_paste"`
	PassThreshold   float64          `json:"pass_threshold"`
	Questions       []QuestionImport `json:"questions"`
}
