package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiznet-service/internal/app"
	"quiznet-service/internal/domain"
	"quiznet-service/internal/infra/memory"
)

func TestStatusStreamPushesUpdates(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()
	creator := env.token(t, "creator-1")
	participant := env.token(t, "u1")

	resp := env.do(t, "POST", "/api/quizzes/", creator, createQuizPayload())
	var created struct {
		Quiz domain.Quiz `json:"quiz"`
	}
	decode(t, resp, http.StatusCreated, &created)

	conn := dialStatus(t, env, created.Quiz.QuizID, "u1")
	defer conn.Close()

	var status domain.AttemptStatus
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !status.IsActive || status.QuizEnded || status.AlreadySubmitted {
		t.Fatalf("unexpected status %+v", status)
	}

	// Submit on the side; a later push reflects it.
	resp = env.do(t, "GET", "/api/quizzes/"+created.Quiz.QuizID+"/attempt", participant, nil)
	drain(t, resp, http.StatusOK)
	resp = env.do(t, "POST", "/api/quizzes/"+created.Quiz.QuizID+"/attempt/submit", participant, nil)
	drain(t, resp, http.StatusOK)

	deadline := time.Now().Add(10 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&status); err != nil {
			t.Fatalf("read status: %v", err)
		}
		if status.AlreadySubmitted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never observed already_submitted")
		}
	}
}

func TestStatusStreamClosesWhenQuizEnds(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	quiz := domain.Quiz{
		QuizID:           "quiz-1",
		CreatorID:        "creator-1",
		Title:            "Ended already",
		IsActive:         true,
		InitiatesOn:      now.Add(-2 * time.Hour),
		EndsOn:           now.Add(-time.Hour),
		TimeLimitMinutes: 30,
		QuestionIDs:      []string{},
		Scores:           []domain.ScoreEntry{},
	}
	if err := store.CreateQuiz(context.Background(), quiz, nil); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	env := newTestEnvWithStore(t, store)
	defer env.close()

	conn := dialStatus(t, env, "quiz-1", "u1")
	defer conn.Close()

	var status domain.AttemptStatus
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !status.QuizEnded || status.IsActive {
		t.Fatalf("expected ended status, got %+v", status)
	}

	// The server closes the stream after the ended push.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&status); err == nil {
		t.Fatalf("expected stream closed after quiz end")
	}
}

func TestStatusStreamRejectsUnknownQuiz(t *testing.T) {
	env := newTestEnv(t)
	defer env.close()
	token, err := env.auth.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	u := "ws" + env.server.URL[len("http"):] + "/ws/quizzes/missing/status?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure for unknown quiz")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
}

func dialStatus(t *testing.T, env *testEnv, quizID, subject string) *websocket.Conn {
	t.Helper()
	token, err := env.auth.Issue(subject, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	u := "ws" + env.server.URL[len("http"):] + "/ws/quizzes/" + quizID + "/status?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func newTestEnvWithStore(t *testing.T, store *memory.Store) *testEnv {
	t.Helper()
	cache := memory.NewQuestionCache(store, time.Minute)
	window := app.NewWindowPolicy(store, false)
	attempts := app.NewAttemptService(store, cache, window)
	authoring := app.NewAuthoringService(store)
	verifier := NewVerifier(testSecret)
	handler := NewHandler(attempts, authoring, verifier)
	return &testEnv{
		server: httptest.NewServer(handler.Routes()),
		auth:   verifier,
	}
}
