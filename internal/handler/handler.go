// Package handler implements the JSON API. Routes are registered on a chi
// router; authentication is a bearer token backed by the store's auth
// sessions.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/avorobey/autograder/internal/grading"
	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/plagiarism"
	"github.com/avorobey/autograder/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	grader   grading.Service
	detector *plagiarism.Detector
}

// New creates a new Handler.
func New(s *store.Store, g grading.Service, d *plagiarism.Detector) *Handler {
	return &Handler{store: s, grader: g, detector: d}
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/logout", h.handleLogout)
		r.Get("/api/exams", h.handleListExams)
		r.Get("/api/exams/{examID}/questions", h.handleListQuestions)

		r.Post("/api/exams/{examID}/submissions", h.handleStartSubmission)
		r.Post("/api/submissions/{submissionID}/answers", h.handleSaveAnswer)
		r.Post("/api/submissions/{submissionID}/events", h.handleRecordEvent)
		r.Post("/api/submissions/{submissionID}/submit", h.handleSubmit)
		r.Get("/api/submissions/{submissionID}/result", h.handleResult)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))

			r.Get("/api/exams/{examID}/plagiarism", h.handlePlagiarismReport)
			r.Get("/api/submissions/{submissionID}/suspicion", h.handleSuspicion)
			r.Post("/api/grade", h.handleAdhocGrade)
			r.Post("/api/plagiarism/compare", h.handleCompareTexts)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
