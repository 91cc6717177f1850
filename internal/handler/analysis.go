package handler

import (
	"net/http"

	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/plagiarism"
)

func (h *Handler) handlePlagiarismReport(w http.ResponseWriter, r *http.Request) {
	examID, ok := urlID(r, "examID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}
	if _, err := h.store.GetExam(examID); err != nil {
		respondError(w, http.StatusNotFound, "exam not found")
		return
	}

	batch, err := h.collectSubmissionAnswers(examID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.detector.CheckSubmissions(batch))
}

// collectSubmissionAnswers builds the detector's input from everything
// stored for one exam.
func (h *Handler) collectSubmissionAnswers(examID int64) ([]plagiarism.SubmissionAnswers, error) {
	subs, err := h.store.ListSubmissionsForExam(examID)
	if err != nil {
		return nil, err
	}
	var batch []plagiarism.SubmissionAnswers
	for _, sub := range subs {
		answers, err := h.store.ListAnswersForSubmission(sub.ID)
		if err != nil {
			return nil, err
		}
		name := ""
		if user, err := h.store.GetUserByID(sub.StudentID); err == nil && user != nil {
			name = user.DisplayName
		}
		batch = append(batch, plagiarism.SubmissionAnswers{
			SubmissionID: sub.ID,
			StudentName:  name,
			Answers:      answers,
		})
	}
	return batch, nil
}

type adhocGradeRequest struct {
	Question model.Question    `json:"question"`
	Answer   model.AnswerInput `json:"answer"`
}

// handleAdhocGrade grades a one-off question/answer pair without touching
// the database. Useful for calibrating rubrics.
func (h *Handler) handleAdhocGrade(w http.ResponseWriter, r *http.Request) {
	var req adhocGradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Question.Type == "" || req.Question.Points <= 0 {
		respondError(w, http.StatusBadRequest, "question type and positive points are required")
		return
	}
	respondJSON(w, http.StatusOK, h.grader.Grade(r.Context(), req.Question, req.Answer))
}

type compareRequest struct {
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
}

type compareResponse struct {
	Similarity float64 `json:"similarity"`
	IsSimilar  bool    `json:"is_similar"`
}

func (h *Handler) handleCompareTexts(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	similarity := h.detector.CompareTexts(req.TextA, req.TextB)
	respondJSON(w, http.StatusOK, compareResponse{
		Similarity: similarity,
		IsSimilar:  similarity >= h.detector.Threshold,
	})
}
