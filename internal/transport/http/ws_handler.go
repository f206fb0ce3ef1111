package http

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const statusPushInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// statusStream upgrades the request and pushes the caller's attempt status
// on a short ticker, so clients can render a live countdown without polling.
// The stream closes itself once the quiz window has ended.
func (h *Handler) statusStream(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	userID := UserIDFromContext(r.Context())

	// Resolve the first status before upgrading so a bad quiz id still
	// yields a proper HTTP error.
	status, err := h.attempts.Status(r.Context(), userID, quizID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(status); err != nil {
			return
		}
		if status.QuizEnded {
			return
		}

		select {
		case <-clientGone:
			return
		case <-ticker.C:
		}

		status, err = h.attempts.Status(r.Context(), userID, quizID)
		if err != nil {
			log.Printf("status stream for quiz %s: %v", quizID, err)
			return
		}
	}
}
