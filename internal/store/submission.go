package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avorobey/autograder/internal/model"
)

// Proctoring event names accepted by RecordEvent.
const (
	EventTabSwitch = "tab_switch"
	EventFocusLost = "focus_lost"
	EventCopyPaste = "copy_paste"
	EventShortcut  = "keyboard_shortcut"
)

// CreateSubmission starts a new in-progress submission for a student.
func (s *Store) CreateSubmission(examID, studentID int64, ipAddress string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO submissions (exam_id, student_id, status, started_at, ip_address)
		 VALUES (?, ?, ?, ?, ?)`,
		examID, studentID, model.StatusInProgress, time.Now(), ipAddress,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const submissionColumns = `id, exam_id, student_id, status, started_at, submitted_at, graded_at,
	score, percentage, passed, ip_address, ip_changed, time_taken_seconds,
	tab_switches, focus_lost, copy_paste_events, shortcut_events, flags`

func scanSubmission(row interface{ Scan(...any) error }) (model.Submission, error) {
	var sub model.Submission
	var flags string
	err := row.Scan(
		&sub.ID, &sub.ExamID, &sub.StudentID, &sub.Status, &sub.StartedAt, &sub.SubmittedAt, &sub.GradedAt,
		&sub.Score, &sub.Percentage, &sub.Passed, &sub.IPAddress, &sub.IPChanged, &sub.TimeTakenSeconds,
		&sub.TabSwitches, &sub.FocusLost, &sub.CopyPasteEvents, &sub.ShortcutEvents, &flags,
	)
	if err != nil {
		return sub, err
	}
	if err := json.Unmarshal([]byte(flags), &sub.Flags); err != nil {
		return sub, fmt.Errorf("decode flags for submission %d: %w", sub.ID, err)
	}
	return sub, nil
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(id int64) (model.Submission, error) {
	row := s.db.QueryRow(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	return scanSubmission(row)
}

// ListSubmissionsForExam returns all of an exam's submissions, oldest first.
func (s *Store) ListSubmissionsForExam(examID int64) ([]model.Submission, error) {
	rows, err := s.db.Query(
		`SELECT `+submissionColumns+` FROM submissions WHERE exam_id = ? ORDER BY id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSubmissionStatus updates only the status.
func (s *Store) UpdateSubmissionStatus(id int64, status model.SubmissionStatus) error {
	_, err := s.db.Exec(`UPDATE submissions SET status = ? WHERE id = ?`, status, id)
	return err
}

// FinalizeSubmission records the grading outcome in one update.
func (s *Store) FinalizeSubmission(id int64, status model.SubmissionStatus, score, percentage float64, passed bool, timeTaken int) error {
	now := time.Now()
	_, err := s.db.Exec(
		`UPDATE submissions
		 SET status = ?, submitted_at = ?, graded_at = ?, score = ?, percentage = ?, passed = ?, time_taken_seconds = ?
		 WHERE id = ?`,
		status, now, now, score, percentage, passed, timeTaken, id,
	)
	return err
}

// RecordEvent increments the counter for one proctoring event.
func (s *Store) RecordEvent(submissionID int64, event string) error {
	var column string
	switch event {
	case EventTabSwitch:
		column = "tab_switches"
	case EventFocusLost:
		column = "focus_lost"
	case EventCopyPaste:
		column = "copy_paste_events"
	case EventShortcut:
		column = "shortcut_events"
	default:
		return fmt.Errorf("unknown proctoring event %q", event)
	}
	_, err := s.db.Exec(
		`UPDATE submissions SET `+column+` = `+column+` + 1 WHERE id = ?`, submissionID,
	)
	return err
}

// MarkIPChanged flags a submission whose client address moved mid-exam.
func (s *Store) MarkIPChanged(submissionID int64, newIP string) error {
	_, err := s.db.Exec(
		`UPDATE submissions SET ip_changed = 1, ip_address = ? WHERE id = ?`, newIP, submissionID,
	)
	return err
}

// AddFlag appends a manual suspicion flag to a submission.
func (s *Store) AddFlag(submissionID int64, flag string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	if err := tx.QueryRow(`SELECT flags FROM submissions WHERE id = ?`, submissionID).Scan(&raw); err != nil {
		return err
	}
	var flags []string
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return fmt.Errorf("decode flags for submission %d: %w", submissionID, err)
	}
	flags = append(flags, flag)
	encoded, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE submissions SET flags = ? WHERE id = ?`, string(encoded), submissionID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertAnswer saves a student's answer, replacing any earlier one for the
// same question. Grading fields are reset on replace.
func (s *Store) UpsertAnswer(submissionID, questionID int64, in model.AnswerInput) error {
	_, err := s.db.Exec(
		`INSERT INTO answers (submission_id, question_id, text, selected_choice)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(submission_id, question_id) DO UPDATE SET
			text = excluded.text,
			selected_choice = excluded.selected_choice,
			points_earned = 0, is_correct = 0, feedback = '', confidence = 0,
			grading_method = '', graded_at = NULL`,
		submissionID, questionID, in.Text, in.SelectedChoice,
	)
	return err
}

// UpdateAnswerGrade records the grading outcome for one answer.
func (s *Store) UpdateAnswerGrade(submissionID, questionID int64, res model.GradingResult) error {
	_, err := s.db.Exec(
		`UPDATE answers
		 SET points_earned = ?, is_correct = ?, feedback = ?, confidence = ?, grading_method = ?, graded_at = ?
		 WHERE submission_id = ? AND question_id = ?`,
		res.PointsEarned, res.IsCorrect, res.Feedback, res.Confidence, res.Method, time.Now(),
		submissionID, questionID,
	)
	return err
}

// ListAnswersForSubmission returns a submission's answers ordered by the
// question position.
func (s *Store) ListAnswersForSubmission(submissionID int64) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.submission_id, a.question_id, a.text, a.selected_choice,
			a.points_earned, a.is_correct, a.feedback, a.confidence, a.grading_method, a.graded_at
		 FROM answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.submission_id = ?
		 ORDER BY q.position, q.id`, submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.Text, &a.SelectedChoice,
			&a.PointsEarned, &a.IsCorrect, &a.Feedback, &a.Confidence, &a.Method, &a.GradedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// GetAnswer returns one submission's answer for a question, or sql.ErrNoRows.
func (s *Store) GetAnswer(submissionID, questionID int64) (model.Answer, error) {
	var a model.Answer
	err := s.db.QueryRow(
		`SELECT id, submission_id, question_id, text, selected_choice,
			points_earned, is_correct, feedback, confidence, grading_method, graded_at
		 FROM answers WHERE submission_id = ? AND question_id = ?`,
		submissionID, questionID,
	).Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.Text, &a.SelectedChoice,
		&a.PointsEarned, &a.IsCorrect, &a.Feedback, &a.Confidence, &a.Method, &a.GradedAt)
	return a, err
}

// ErrNoRows re-exports the sentinel so callers need not import database/sql.
var ErrNoRows = sql.ErrNoRows
