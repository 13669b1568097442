package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"minuted/internal/announce"
	"minuted/internal/meeting"
	"minuted/internal/session"
)

// SummaryClient is the language-model surface the API needs for on-demand
// summary generation. Implementations degrade to placeholder text instead
// of returning errors.
type SummaryClient interface {
	Summarize(ctx context.Context, conversation, title string) string
	Analyze(ctx context.Context, conversation string) string
}

type Server struct {
	manager   *session.Manager
	finalizer *meeting.Finalizer
	store     meeting.Store
	llm       SummaryClient
	announcer *announce.Announcer
	router    chi.Router
	port      int
}

func NewServer(m *session.Manager, f *meeting.Finalizer, store meeting.Store, llm SummaryClient, ann *announce.Announcer, port int) *Server {
	srv := &Server{
		manager:   m,
		finalizer: f,
		store:     store,
		llm:       llm,
		announcer: ann,
		port:      port,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Post("/start_transcription", srv.handleStart)
		r.Post("/stop_transcription/{sessionID}", srv.handleStop)
		r.Get("/transcription_status/{sessionID}", srv.handleStatus)
		r.Get("/active_sessions", srv.handleActiveSessions)
		r.Get("/meetings", srv.handleListMeetings)
		r.Get("/meetings/{meetingID}", srv.handleGetMeeting)
		r.Delete("/meetings/{meetingID}", srv.handleDeleteMeeting)
		r.Post("/generate_summary/{meetingID}", srv.handleGenerateSummary)
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"service":         "minuted",
		"active_sessions": len(s.manager.ListActive()),
	})
}

type startRequest struct {
	Language     string `json:"language"`
	SpeakerCount int    `json:"speaker_count"`
	MeetingTitle string `json:"meeting_title"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id, err := s.manager.Start(session.StartConfig{
		Language:     req.Language,
		SpeakerCount: req.SpeakerCount,
		MeetingTitle: req.MeetingTitle,
	})
	if err != nil {
		if errors.Is(err, session.ErrInvalidConfig) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("start session failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	s.announcer.SessionStarted(id, req.Language, req.SpeakerCount)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": id,
		"message":    "Meeting recording started",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	st, err := s.manager.Stop(sessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}

	rec := s.finalizer.Finalize(r.Context(), st)

	s.announcer.SessionStopped(sessionID, rec.PhraseCount)
	s.announcer.MeetingStored(rec.ID, rec.Title, rec.PhraseCount)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"meeting": rec,
		"message": "Meeting stopped successfully. Generate summary when ready.",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snap, err := s.manager.Status(sessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.manager.ListActive()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("list meetings failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if records == nil {
		records = []meeting.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")

	rec, err := s.store.Get(r.Context(), meetingID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Meeting not found"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")

	if err := s.store.Delete(r.Context(), meetingID); err != nil {
		slog.Error("delete meeting failed", "meeting_id", meetingID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Meeting deleted",
	})
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")

	rec, err := s.store.Get(r.Context(), meetingID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Meeting not found"})
		return
	}

	summary := s.llm.Summarize(r.Context(), rec.Conversation, rec.Title)
	analysis := s.llm.Analyze(r.Context(), rec.Conversation)

	updated, err := s.store.AttachSummary(r.Context(), meetingID, summary, analysis)
	if err != nil {
		if errors.Is(err, meeting.ErrMeetingNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Meeting not found"})
			return
		}
		slog.Error("attach summary failed", "meeting_id", meetingID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	s.announcer.MeetingSummarized(meetingID)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"summary":  summary,
		"analysis": analysis,
		"meeting":  updated,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
