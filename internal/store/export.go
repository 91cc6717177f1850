package store

import (
	"fmt"
	"time"

	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/proctor"
)

// ExportExam assembles the full result set for one exam: every submission
// with its graded answers and suspicion score.
func (s *Store) ExportExam(examID int64, backend string) (model.ExamExport, error) {
	exam, err := s.GetExam(examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("get exam %d: %w", examID, err)
	}
	subs, err := s.ListSubmissionsForExam(examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list submissions: %w", err)
	}

	questions, err := s.ListQuestionsForExam(examID)
	if err != nil {
		return model.ExamExport{}, fmt.Errorf("list questions: %w", err)
	}
	questionByID := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		questionByID[q.ID] = q
	}

	export := model.ExamExport{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Backend:   backend,
		Generated: time.Now(),
	}

	for _, sub := range subs {
		user, err := s.GetUserByID(sub.StudentID)
		if err != nil {
			return model.ExamExport{}, fmt.Errorf("get user %d: %w", sub.StudentID, err)
		}
		var displayName string
		if user != nil {
			displayName = user.DisplayName
		}

		answers, err := s.ListAnswersForSubmission(sub.ID)
		if err != nil {
			return model.ExamExport{}, fmt.Errorf("list answers for submission %d: %w", sub.ID, err)
		}

		var answerResults []model.AnswerResult
		for _, a := range answers {
			q := questionByID[a.QuestionID]
			answerResults = append(answerResults, model.AnswerResult{
				QuestionID:   a.QuestionID,
				QuestionText: q.Text,
				Type:         q.Type,
				MaxPoints:    q.Points,
				PointsEarned: a.PointsEarned,
				IsCorrect:    a.IsCorrect,
				Confidence:   a.Confidence,
				Method:       a.Method,
				Feedback:     a.Feedback,
			})
		}

		result := model.StudentResult{
			StudentID:      sub.StudentID,
			DisplayName:    displayName,
			Status:         sub.Status,
			StartedAt:      sub.StartedAt,
			SubmittedAt:    sub.SubmittedAt,
			SuspicionScore: proctor.Evaluate(sub, exam).Score,
			Answers:        answerResults,
		}
		if sub.Score != nil {
			result.Score = *sub.Score
		}
		if sub.Percentage != nil {
			result.Percentage = *sub.Percentage
		}
		if sub.Passed != nil {
			result.Passed = *sub.Passed
		}
		export.Results = append(export.Results, result)
	}

	return export, nil
}
