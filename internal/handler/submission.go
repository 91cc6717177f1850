package handler

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/proctor"
	"github.com/avorobey/autograder/internal/store"
)

func (h *Handler) handleStartSubmission(w http.ResponseWriter, r *http.Request) {
	examID, ok := urlID(r, "examID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid exam ID")
		return
	}
	if _, err := h.store.GetExam(examID); err != nil {
		respondError(w, http.StatusNotFound, "exam not found")
		return
	}

	user := model.UserFromContext(r.Context())
	subID, err := h.store.CreateSubmission(examID, user.ID, remoteIP(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sub, err := h.store.GetSubmission(subID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("submission started", "submission_id", subID, "exam_id", examID, "student_id", user.ID)
	respondJSON(w, http.StatusCreated, sub)
}

type answerRequest struct {
	QuestionID     int64  `json:"question_id"`
	Text           string `json:"text"`
	SelectedChoice *int   `json:"selected_choice,omitempty"`
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.openSubmission(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	question, err := h.store.GetQuestion(req.QuestionID)
	if err != nil || question.ExamID != sub.ExamID {
		respondError(w, http.StatusNotFound, "question not found")
		return
	}

	// An address change mid-exam is recorded on the fly.
	if ip := remoteIP(r); ip != "" && sub.IPAddress != "" && ip != sub.IPAddress {
		if err := h.store.MarkIPChanged(sub.ID, ip); err != nil {
			slog.Error("failed to mark ip change", "submission_id", sub.ID, "error", err)
		}
	}

	in := model.AnswerInput{Text: req.Text, SelectedChoice: req.SelectedChoice}
	if err := h.store.UpsertAnswer(sub.ID, req.QuestionID, in); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type eventRequest struct {
	Event string `json:"event"`
}

func (h *Handler) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.openSubmission(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.RecordEvent(sub.ID, req.Event); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// submitResponse is what the student gets back right after grading.
type submitResponse struct {
	SubmissionID int64                  `json:"submission_id"`
	Status       model.SubmissionStatus `json:"status"`
	Score        float64                `json:"score"`
	MaxScore     float64                `json:"max_score"`
	Percentage   float64                `json:"percentage"`
	Passed       bool                   `json:"passed"`
	Suspicion    proctor.Verdict        `json:"suspicion"`
	Answers      []model.Answer         `json:"answers"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.openSubmission(w, r)
	if !ok {
		return
	}
	exam, err := h.store.GetExam(sub.ExamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	questions, err := h.store.ListQuestionsForExam(sub.ExamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.store.UpdateSubmissionStatus(sub.ID, model.StatusGrading); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	answers, err := h.store.ListAnswersForSubmission(sub.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	answerByQuestion := make(map[int64]model.Answer, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a
	}

	// Questions are independent; grade them concurrently. Unanswered
	// questions still get a stored zero-point result.
	ctx := r.Context()
	results := make([]model.GradingResult, len(questions))
	var wg sync.WaitGroup
	for i, q := range questions {
		in := model.AnswerInput{}
		if a, found := answerByQuestion[q.ID]; found {
			in = model.AnswerInput{Text: a.Text, SelectedChoice: a.SelectedChoice}
		}
		wg.Add(1)
		go func(i int, q model.Question, in model.AnswerInput) {
			defer wg.Done()
			results[i] = h.grader.Grade(ctx, q, in)
		}(i, q, in)
	}
	wg.Wait()

	var earned, max float64
	for i, q := range questions {
		res := results[i]
		earned += res.PointsEarned
		max += q.Points
		if _, found := answerByQuestion[q.ID]; !found {
			if err := h.store.UpsertAnswer(sub.ID, q.ID, model.AnswerInput{}); err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		if err := h.store.UpdateAnswerGrade(sub.ID, q.ID, res); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	percentage := 0.0
	if max > 0 {
		percentage = earned / max * 100
	}
	passed := percentage >= exam.PassThreshold

	sub.TimeTakenSeconds = int(time.Since(sub.StartedAt).Seconds())
	verdict := proctor.Evaluate(sub, exam)
	status := model.StatusGraded
	if verdict.Suspicious {
		status = model.StatusFlagged
	}

	if err := h.store.FinalizeSubmission(sub.ID, status, earned, percentage, passed, sub.TimeTakenSeconds); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	graded, err := h.store.ListAnswersForSubmission(sub.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("submission graded",
		"submission_id", sub.ID, "exam_id", exam.ID, "backend", h.grader.Name(),
		"score", earned, "percentage", percentage, "suspicious", verdict.Suspicious)

	respondJSON(w, http.StatusOK, submitResponse{
		SubmissionID: sub.ID,
		Status:       status,
		Score:        earned,
		MaxScore:     max,
		Percentage:   percentage,
		Passed:       passed,
		Suspicion:    verdict,
		Answers:      graded,
	})
}

type resultResponse struct {
	Submission model.Submission `json:"submission"`
	Answers    []model.Answer   `json:"answers"`
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.loadSubmission(w, r)
	if !ok {
		return
	}
	answers, err := h.store.ListAnswersForSubmission(sub.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resultResponse{Submission: sub, Answers: answers})
}

func (h *Handler) handleSuspicion(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.loadSubmission(w, r)
	if !ok {
		return
	}
	exam, err := h.store.GetExam(sub.ExamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, proctor.Evaluate(sub, exam))
}

// loadSubmission fetches the submission named in the URL and enforces
// ownership.
func (h *Handler) loadSubmission(w http.ResponseWriter, r *http.Request) (model.Submission, bool) {
	id, ok := urlID(r, "submissionID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid submission ID")
		return model.Submission{}, false
	}
	sub, err := h.store.GetSubmission(id)
	if err == store.ErrNoRows {
		respondError(w, http.StatusNotFound, "submission not found")
		return model.Submission{}, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return model.Submission{}, false
	}
	if !canAccessSubmission(model.UserFromContext(r.Context()), sub) {
		respondError(w, http.StatusForbidden, "forbidden")
		return model.Submission{}, false
	}
	return sub, true
}

// openSubmission is loadSubmission plus the in-progress check used by every
// mutating endpoint.
func (h *Handler) openSubmission(w http.ResponseWriter, r *http.Request) (model.Submission, bool) {
	sub, ok := h.loadSubmission(w, r)
	if !ok {
		return sub, false
	}
	if sub.Status != model.StatusInProgress {
		respondError(w, http.StatusConflict, "submission already submitted")
		return sub, false
	}
	return sub, true
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
