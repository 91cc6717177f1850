package handler

import (
	"net/http"

	"github.com/avorobey/autograder/internal/model"
)

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	respondJSON(w, http.StatusOK, exams)
}

// questionView is a question as shown to students: reference answers and
// rubrics stay server-side.
type questionView struct {
	ID       int64              `json:"id"`
	Type     model.QuestionType `json:"type"`
	Text     string             `json:"text"`
	Points   float64            `json:"points"`
	Choices  []string           `json:"choices,omitempty"`
	Position int                `json:"position"`
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	examID, ok := urlID(r, "examID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}
	if _, err := h.store.GetExam(examID); err != nil {
		respondError(w, http.StatusNotFound, "exam not found")
		return
	}

	questions, err := h.store.ListQuestionsForExam(examID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user := model.UserFromContext(r.Context())
	if user.Role != model.UserRoleStudent {
		respondJSON(w, http.StatusOK, questions)
		return
	}

	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, questionView{
			ID:       q.ID,
			Type:     q.Type,
			Text:     q.Text,
			Points:   q.Points,
			Choices:  q.Choices,
			Position: q.Position,
		})
	}
	respondJSON(w, http.StatusOK, views)
}
