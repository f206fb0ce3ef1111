package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quiznet-service/internal/app"
	"quiznet-service/internal/domain"
)

// Handler exposes the attempt lifecycle and the thin authoring CRUD over
// REST, plus a websocket status stream.
type Handler struct {
	attempts  *app.AttemptService
	authoring *app.AuthoringService
	verifier  *Verifier
}

func NewHandler(attempts *app.AttemptService, authoring *app.AuthoringService, verifier *Verifier) *Handler {
	return &Handler{attempts: attempts, authoring: authoring, verifier: verifier}
}

// Routes wires the full HTTP surface.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(h.verifier.Middleware)

		r.Route("/api/quizzes", func(r chi.Router) {
			r.Post("/", h.createQuiz)
			r.Get("/", h.listQuizzes)
			r.Get("/attempted", h.listAttempted)

			r.Route("/{quizID}", func(r chi.Router) {
				r.Delete("/", h.deleteQuiz)
				r.Get("/attempt", h.startAttempt)
				r.Patch("/attempt/answer", h.saveAnswer)
				r.Get("/attempt/status", h.attemptStatus)
				r.Post("/attempt/submit", h.submitAttempt)
				r.Get("/responses", h.listResponses)
				r.Get("/responses/{userID}", h.participantResponses)
			})
		})

		r.Get("/ws/quizzes/{quizID}/status", h.statusStream)
	})

	return r
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var input app.QuizInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quiz, questions, err := h.authoring.CreateQuiz(r.Context(), UserIDFromContext(r.Context()), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"quiz":      quiz,
		"questions": questions,
	})
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.authoring.ListQuizzes(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) listAttempted(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.authoring.ListAttempted(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	err := h.authoring.DeleteQuiz(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeDetail(w, http.StatusOK, "quiz deleted")
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	started, err := h.attempts.StartOrResume(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

type saveAnswerRequest struct {
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
}

func (h *Handler) saveAnswer(w http.ResponseWriter, r *http.Request) {
	var req saveAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == "" {
		writeDetail(w, http.StatusBadRequest, "question_id required")
		return
	}
	err := h.attempts.SaveAnswer(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "quizID"), req.QuestionID, req.SelectedOption)
	if err != nil {
		writeError(w, err)
		return
	}
	writeDetail(w, http.StatusOK, "answer saved")
}

func (h *Handler) attemptStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.attempts.Status(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.attempts.Submit(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) listResponses(w http.ResponseWriter, r *http.Request) {
	breakdowns, err := h.attempts.ListResponses(r.Context(), UserIDFromContext(r.Context()), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdowns)
}

func (h *Handler) participantResponses(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.attempts.ParticipantResponses(r.Context(),
		UserIDFromContext(r.Context()), chi.URLParam(r, "quizID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrNoAttempts):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrQuizInactive),
		errors.Is(err, domain.ErrQuizEnded),
		errors.Is(err, domain.ErrQuizNotStarted):
		writeDetail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrInvalidQuiz),
		errors.Is(err, domain.ErrNotSubmitted):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}
