package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/avorobey/autograder/internal/grading"
	appI18n "github.com/avorobey/autograder/internal/i18n"
	"github.com/avorobey/autograder/internal/model"
	"github.com/avorobey/autograder/internal/plagiarism"
	"github.com/avorobey/autograder/internal/store"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	srv   *httptest.Server
	store *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h := New(s, grading.NewAlgorithmic(), plagiarism.NewDetector(0))
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: s}
}

func (e *testEnv) createUser(t *testing.T, username, password string, role model.UserRole) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	id, err := e.store.CreateUser(model.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return id
}

// do sends a JSON request and decodes the response body into out (when
// out is non-nil). It returns the status code.
func (e *testEnv) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response for %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	status := e.do(t, http.MethodPost, "/api/login", "",
		map[string]string{"username": username, "password": password}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	return resp.Token
}

// seedExam creates an untimed two-question exam: one multiple-choice, one
// short-answer.
func (e *testEnv) seedExam(t *testing.T) (examID, mcqID, shortID int64) {
	t.Helper()
	examID, err := e.store.InsertExam(model.Exam{
		Title:          "Geography",
		MaxTabSwitches: 3,
		PassThreshold:  60,
	})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
	mcqID, err = e.store.InsertQuestion(model.Question{
		ExamID:         examID,
		Type:           model.QuestionMultipleChoice,
		Text:           "Capital of France?",
		Points:         5,
		Choices:        []string{"London", "Paris", "Berlin"},
		ExpectedAnswer: "1",
		Position:       1,
	})
	if err != nil {
		t.Fatalf("InsertQuestion mcq: %v", err)
	}
	shortID, err = e.store.InsertQuestion(model.Question{
		ExamID:         examID,
		Type:           model.QuestionShortAnswer,
		Text:           "What is the capital of France?",
		Points:         5,
		ExpectedAnswer: "Paris is the capital of France",
		Position:       2,
	})
	if err != nil {
		t.Fatalf("InsertQuestion short: %v", err)
	}
	return examID, mcqID, shortID
}

func TestLoginAndAuth(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "alice", "secret", model.UserRoleStudent)

	if status := e.do(t, http.MethodPost, "/api/login", "",
		map[string]string{"username": "alice", "password": "wrong"}, nil); status != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", status)
	}

	token := e.login(t, "alice", "secret")
	if token == "" {
		t.Fatal("empty token")
	}

	if status := e.do(t, http.MethodGet, "/api/exams", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", status)
	}
	if status := e.do(t, http.MethodGet, "/api/exams", token, nil, nil); status != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", status)
	}

	if status := e.do(t, http.MethodPost, "/api/logout", token, nil, nil); status != http.StatusOK {
		t.Errorf("logout status = %d", status)
	}
	if status := e.do(t, http.MethodGet, "/api/exams", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("post-logout status = %d, want 401", status)
	}
}

func TestStudentQuestionViewHidesAnswers(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "alice", "secret", model.UserRoleStudent)
	examID, _, _ := e.seedExam(t)
	token := e.login(t, "alice", "secret")

	var views []map[string]any
	status := e.do(t, http.MethodGet, fmt.Sprintf("/api/exams/%d/questions", examID), token, nil, &views)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(views))
	}
	for _, v := range views {
		if _, leaked := v["expected_answer"]; leaked {
			t.Error("expected_answer leaked to student view")
		}
		if _, leaked := v["rubric"]; leaked {
			t.Error("rubric leaked to student view")
		}
	}
}

func TestSubmissionFlow(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "alice", "secret", model.UserRoleStudent)
	examID, mcqID, shortID := e.seedExam(t)
	token := e.login(t, "alice", "secret")

	var sub model.Submission
	status := e.do(t, http.MethodPost, fmt.Sprintf("/api/exams/%d/submissions", examID), token, nil, &sub)
	if status != http.StatusCreated {
		t.Fatalf("start status = %d", status)
	}
	if sub.Status != model.StatusInProgress {
		t.Fatalf("status = %q", sub.Status)
	}

	base := fmt.Sprintf("/api/submissions/%d", sub.ID)

	choice := 1
	if status := e.do(t, http.MethodPost, base+"/answers", token,
		answerRequest{QuestionID: mcqID, SelectedChoice: &choice}, nil); status != http.StatusOK {
		t.Fatalf("save mcq answer status = %d", status)
	}
	if status := e.do(t, http.MethodPost, base+"/answers", token,
		answerRequest{QuestionID: shortID, Text: "Paris is the capital of France"}, nil); status != http.StatusOK {
		t.Fatalf("save short answer status = %d", status)
	}

	if status := e.do(t, http.MethodPost, base+"/events", token,
		eventRequest{Event: store.EventTabSwitch}, nil); status != http.StatusOK {
		t.Fatalf("record event status = %d", status)
	}
	if status := e.do(t, http.MethodPost, base+"/events", token,
		eventRequest{Event: "bogus"}, nil); status != http.StatusBadRequest {
		t.Errorf("bogus event status = %d, want 400", status)
	}

	var result submitResponse
	if status := e.do(t, http.MethodPost, base+"/submit", token, nil, &result); status != http.StatusOK {
		t.Fatalf("submit status = %d", status)
	}
	if result.Status != model.StatusGraded {
		t.Errorf("status = %q, want graded", result.Status)
	}
	if result.Score != 10 || result.MaxScore != 10 {
		t.Errorf("score = %v/%v, want 10/10", result.Score, result.MaxScore)
	}
	if !result.Passed {
		t.Error("expected passed")
	}
	if result.Suspicion.Suspicious {
		t.Errorf("one tab switch under the limit flagged: %+v", result.Suspicion)
	}
	if len(result.Answers) != 2 {
		t.Fatalf("expected 2 graded answers, got %d", len(result.Answers))
	}
	for _, a := range result.Answers {
		if a.Method != "tfidf" {
			t.Errorf("method = %q, want tfidf", a.Method)
		}
		if !a.IsCorrect {
			t.Errorf("answer to question %d not correct: %+v", a.QuestionID, a)
		}
	}

	// A second submit hits the already-submitted guard.
	if status := e.do(t, http.MethodPost, base+"/submit", token, nil, nil); status != http.StatusConflict {
		t.Errorf("double submit status = %d, want 409", status)
	}

	var res resultResponse
	if status := e.do(t, http.MethodGet, base+"/result", token, nil, &res); status != http.StatusOK {
		t.Fatalf("result status = %d", status)
	}
	if res.Submission.Score == nil || *res.Submission.Score != 10 {
		t.Errorf("stored score = %v, want 10", res.Submission.Score)
	}
}

func TestSubmitFlagsSuspicious(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "alice", "secret", model.UserRoleStudent)
	examID, mcqID, _ := e.seedExam(t)
	token := e.login(t, "alice", "secret")

	var sub model.Submission
	e.do(t, http.MethodPost, fmt.Sprintf("/api/exams/%d/submissions", examID), token, nil, &sub)
	base := fmt.Sprintf("/api/submissions/%d", sub.ID)

	choice := 1
	e.do(t, http.MethodPost, base+"/answers", token, answerRequest{QuestionID: mcqID, SelectedChoice: &choice}, nil)
	// Past the exam's limit of 3.
	for i := 0; i < 4; i++ {
		e.do(t, http.MethodPost, base+"/events", token, eventRequest{Event: store.EventTabSwitch}, nil)
	}

	var result submitResponse
	if status := e.do(t, http.MethodPost, base+"/submit", token, nil, &result); status != http.StatusOK {
		t.Fatalf("submit status = %d", status)
	}
	if result.Status != model.StatusFlagged {
		t.Errorf("status = %q, want flagged", result.Status)
	}
	if !result.Suspicion.Suspicious || result.Suspicion.Score < 5 {
		t.Errorf("suspicion = %+v", result.Suspicion)
	}
}

func TestStudentCannotReadOthersSubmission(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "alice", "secret", model.UserRoleStudent)
	e.createUser(t, "bob", "secret", model.UserRoleStudent)
	examID, _, _ := e.seedExam(t)

	aliceToken := e.login(t, "alice", "secret")
	bobToken := e.login(t, "bob", "secret")

	var sub model.Submission
	e.do(t, http.MethodPost, fmt.Sprintf("/api/exams/%d/submissions", examID), aliceToken, nil, &sub)

	status := e.do(t, http.MethodGet, fmt.Sprintf("/api/submissions/%d/result", sub.ID), bobToken, nil, nil)
	if status != http.StatusForbidden {
		t.Errorf("cross-student access status = %d, want 403", status)
	}
}

func TestTeacherOnlyEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.createUser(t, "alice", "secret", model.UserRoleStudent)
	e.createUser(t, "prof", "secret", model.UserRoleTeacher)

	studentToken := e.login(t, "alice", "secret")
	teacherToken := e.login(t, "prof", "secret")

	gradeReq := adhocGradeRequest{
		Question: model.Question{
			Type:           model.QuestionShortAnswer,
			Points:         10,
			ExpectedAnswer: "the mitochondria is the powerhouse of the cell",
		},
		Answer: model.AnswerInput{Text: "the mitochondria is the powerhouse of the cell"},
	}

	if status := e.do(t, http.MethodPost, "/api/grade", studentToken, gradeReq, nil); status != http.StatusForbidden {
		t.Errorf("student adhoc grade status = %d, want 403", status)
	}

	var result model.GradingResult
	if status := e.do(t, http.MethodPost, "/api/grade", teacherToken, gradeReq, &result); status != http.StatusOK {
		t.Fatalf("teacher adhoc grade status = %d", status)
	}
	if !result.IsCorrect || result.PointsEarned != 10 {
		t.Errorf("adhoc result = %+v, want full marks", result)
	}

	var cmp compareResponse
	if status := e.do(t, http.MethodPost, "/api/plagiarism/compare", teacherToken,
		compareRequest{TextA: "identical essay text here", TextB: "identical essay text here"}, &cmp); status != http.StatusOK {
		t.Fatalf("compare status = %d", status)
	}
	if !cmp.IsSimilar || cmp.Similarity < 0.99 {
		t.Errorf("compare = %+v, want similar", cmp)
	}
}

func TestPlagiarismReportEndpoint(t *testing.T) {
	e := newTestEnv(t)
	aliceID := e.createUser(t, "alice", "secret", model.UserRoleStudent)
	bobID := e.createUser(t, "bob", "secret", model.UserRoleStudent)
	e.createUser(t, "prof", "secret", model.UserRoleTeacher)

	examID, err := e.store.InsertExam(model.Exam{Title: "History", PassThreshold: 60})
	if err != nil {
		t.Fatalf("InsertExam: %v", err)
	}
	qID, err := e.store.InsertQuestion(model.Question{
		ExamID: examID, Type: model.QuestionEssay, Text: "Discuss", Points: 10,
		ExpectedAnswer: "reference",
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}

	essay := "The industrial revolution transformed manufacturing across Europe with steam power and factories."
	for _, studentID := range []int64{aliceID, bobID} {
		subID, err := e.store.CreateSubmission(examID, studentID, "")
		if err != nil {
			t.Fatalf("CreateSubmission: %v", err)
		}
		if err := e.store.UpsertAnswer(subID, qID, model.AnswerInput{Text: essay}); err != nil {
			t.Fatalf("UpsertAnswer: %v", err)
		}
	}

	teacherToken := e.login(t, "prof", "secret")
	var report plagiarism.Report
	status := e.do(t, http.MethodGet, fmt.Sprintf("/api/exams/%d/plagiarism", examID), teacherToken, nil, &report)
	if status != http.StatusOK {
		t.Fatalf("report status = %d", status)
	}
	if !report.PlagiarismDetected || len(report.FlaggedPairs) != 1 {
		t.Fatalf("report = %+v, want one flagged pair", report)
	}
	pair := report.FlaggedPairs[0]
	if pair.StudentA != "alice" || pair.StudentB != "bob" {
		t.Errorf("students = %q/%q", pair.StudentA, pair.StudentB)
	}
}
