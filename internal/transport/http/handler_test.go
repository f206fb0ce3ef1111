package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiznet-service/internal/domain"
	"quiznet-service/internal/infra/memory"
)

const testSecret = "test-secret"

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	resp, err := http.Get(env.server.URL + "/api/quizzes/")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	// Garbage token is rejected too.
	resp = env.do(t, "GET", "/api/quizzes/", "Bearer not-a-token", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestHealthzIsOpen(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestQuizLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()
	creator := env.token(t, "creator-1")
	participant := env.token(t, "u1")

	// Create a quiz.
	resp := env.do(t, "POST", "/api/quizzes/", creator, createQuizPayload())
	var created struct {
		Quiz      domain.Quiz     `json:"quiz"`
		Questions []quizQuestions `json:"questions"`
	}
	decode(t, resp, http.StatusCreated, &created)
	quizID := created.Quiz.QuizID
	if quizID == "" || len(created.Questions) != 2 {
		t.Fatalf("unexpected create response %+v", created)
	}

	// Start the attempt and check the questions hide answers.
	resp = env.do(t, "GET", "/api/quizzes/"+quizID+"/attempt", participant, nil)
	var started domain.AttemptStart
	decode(t, resp, http.StatusOK, &started)
	if started.Attempt.UserID != "u1" || len(started.Questions) != 2 {
		t.Fatalf("unexpected start response %+v", started)
	}

	// Raw body must not carry the answer field.
	resp = env.do(t, "GET", "/api/quizzes/"+quizID+"/attempt", participant, nil)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if bytes.Contains(raw, []byte(`"answer"`)) {
		t.Fatalf("attempt payload leaks answers: %s", raw)
	}

	// Save answers, one correct and one wrong.
	correct := created.Questions[0].QuestionID
	wrong := created.Questions[1].QuestionID
	resp = env.do(t, "PATCH", "/api/quizzes/"+quizID+"/attempt/answer", participant,
		map[string]any{"question_id": correct, "selected_option": 1})
	drain(t, resp, http.StatusOK)
	resp = env.do(t, "PATCH", "/api/quizzes/"+quizID+"/attempt/answer", participant,
		map[string]any{"question_id": wrong, "selected_option": 1})
	drain(t, resp, http.StatusOK)

	// Status before submit.
	resp = env.do(t, "GET", "/api/quizzes/"+quizID+"/attempt/status", participant, nil)
	var status domain.AttemptStatus
	decode(t, resp, http.StatusOK, &status)
	if !status.IsActive || status.AlreadySubmitted {
		t.Fatalf("unexpected status %+v", status)
	}

	// Submit and verify the grade.
	resp = env.do(t, "POST", "/api/quizzes/"+quizID+"/attempt/submit", participant, nil)
	var attempt domain.Attempt
	decode(t, resp, http.StatusOK, &attempt)
	if attempt.Score == nil || *attempt.Score != 1 {
		t.Fatalf("expected score 1, got %v", attempt.Score)
	}

	// Second submit is rejected.
	resp = env.do(t, "POST", "/api/quizzes/"+quizID+"/attempt/submit", participant, nil)
	drain(t, resp, http.StatusForbidden)

	// Participant sees their own breakdown.
	resp = env.do(t, "GET", "/api/quizzes/"+quizID+"/responses", participant, nil)
	var breakdowns []domain.AttemptBreakdown
	decode(t, resp, http.StatusOK, &breakdowns)
	if len(breakdowns) != 1 || breakdowns[0].UserID != "u1" {
		t.Fatalf("unexpected breakdowns %+v", breakdowns)
	}

	// Creator can read the participant's results; the participant cannot
	// read someone else's.
	resp = env.do(t, "GET", "/api/quizzes/"+quizID+"/responses/u1", creator, nil)
	var one domain.AttemptBreakdown
	decode(t, resp, http.StatusOK, &one)
	if one.UserID != "u1" {
		t.Fatalf("unexpected breakdown %+v", one)
	}
	resp = env.do(t, "GET", "/api/quizzes/"+quizID+"/responses/creator-1", participant, nil)
	drain(t, resp, http.StatusForbidden)

	// Attempted listing for the participant.
	resp = env.do(t, "GET", "/api/quizzes/attempted", participant, nil)
	var attempted []domain.Quiz
	decode(t, resp, http.StatusOK, &attempted)
	if len(attempted) != 1 || attempted[0].QuizID != quizID {
		t.Fatalf("unexpected attempted list %+v", attempted)
	}

	// Creator's own quiz listing.
	resp = env.do(t, "GET", "/api/quizzes/", creator, nil)
	var mine []domain.Quiz
	decode(t, resp, http.StatusOK, &mine)
	if len(mine) != 1 {
		t.Fatalf("expected 1 quiz, got %d", len(mine))
	}

	// Delete as a non-creator fails, as the creator succeeds.
	resp = env.do(t, "DELETE", "/api/quizzes/"+quizID, participant, nil)
	drain(t, resp, http.StatusForbidden)
	resp = env.do(t, "DELETE", "/api/quizzes/"+quizID, creator, nil)
	drain(t, resp, http.StatusOK)
	resp = env.do(t, "GET", "/api/quizzes/"+quizID+"/attempt/status", participant, nil)
	drain(t, resp, http.StatusNotFound)
}

func TestErrorDetailShape(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()
	token := env.token(t, "u1")

	resp := env.do(t, "GET", "/api/quizzes/missing/attempt", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["detail"] == "" {
		t.Fatalf("expected a detail message, got %v", body)
	}
}

func TestInvalidQuizPayloadRejected(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()
	creator := env.token(t, "creator-1")

	payload := createQuizPayload()
	payload["time_limit_minutes"] = 0
	resp := env.do(t, "POST", "/api/quizzes/", creator, payload)
	drain(t, resp, http.StatusBadRequest)
}

type quizQuestions struct {
	QuestionID string `json:"question_id"`
}

type testEnv struct {
	server *httptest.Server
	auth   *Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memory.NewStore())
}

func (e *testEnv) close() {
	e.server.Close()
}

func (e *testEnv) token(t *testing.T, subject string) string {
	t.Helper()
	token, err := e.auth.Issue(subject, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func (e *testEnv) do(t *testing.T, method, path, authorization string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, wantStatus int, out any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", wantStatus, resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func drain(t *testing.T, resp *http.Response, wantStatus int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", wantStatus, resp.StatusCode, raw)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
}

func createQuizPayload() map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"quiz_title":         "Capitals of Europe",
		"initiates_on":       now.Add(-time.Hour).Format(time.RFC3339),
		"ends_on":            now.Add(time.Hour).Format(time.RFC3339),
		"time_limit_minutes": 20,
		"questions": []map[string]any{
			{
				"question_title": "Capital of France?",
				"options":        []string{"Paris", "Lyon", "Nice", "Lille"},
				"answer":         1,
			},
			{
				"question_title": "Capital of Spain?",
				"options":        []string{"Seville", "Barcelona", "Madrid", "Valencia"},
				"answer":         3,
			},
		},
	}
}
