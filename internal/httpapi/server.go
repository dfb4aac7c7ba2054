// Package httpapi exposes the client's live state over a local HTTP
// surface: transcript views, analyses, recordings, search, and session
// control.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/parley/internal/archive"
	"github.com/user/parley/internal/intel"
	"github.com/user/parley/internal/recordings"
	"github.com/user/parley/internal/search"
	"github.com/user/parley/internal/session"
	"github.com/user/parley/internal/transcript"
	"github.com/user/parley/pkg/backend"
)

// Server is a lightweight HTTP handler over the live session state.
type Server struct {
	session    *session.Session
	recordings *recordings.Manager
	remote     *recordings.Remote
	searcher   *search.Searcher
	archived   *archive.Store
	analyzer   *intel.Analyzer
	mux        *http.ServeMux
}

// NewServer creates a Server. Any of remote, archived, and analyzer may
// be nil, which disables recording mutations, the archived-session
// endpoints, and manual analysis respectively.
func NewServer(sess *session.Session, recs *recordings.Manager, remote *recordings.Remote, searcher *search.Searcher, archived *archive.Store, analyzer *intel.Analyzer) *Server {
	s := &Server{
		session:    sess,
		recordings: recs,
		remote:     remote,
		searcher:   searcher,
		archived:   archived,
		analyzer:   analyzer,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	s.mux.HandleFunc("GET /api/analyses", s.handleAnalyses)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/recordings", s.handleRecordings)
	s.mux.HandleFunc("POST /api/recordings", s.handleRecordingCreate)
	s.mux.HandleFunc("POST /api/recordings/{id}/rename", s.handleRecordingRename)
	s.mux.HandleFunc("DELETE /api/recordings/{id}", s.handleRecordingDelete)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/session/clear", s.handleSessionClear)
	s.mux.HandleFunc("GET /api/sessions", s.handleArchivedSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleArchivedSession)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type transcriptResponse struct {
	SessionID string `json:"session_id"`
	View      string `json:"view"`
	Text      string `json:"text"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = string(transcript.ViewHybrid)
	}
	switch transcript.ViewMode(view) {
	case transcript.ViewRaw, transcript.ViewEnhanced, transcript.ViewHybrid:
	default:
		http.Error(w, `{"error":"unknown view"}`, http.StatusBadRequest)
		return
	}

	resp := transcriptResponse{
		SessionID: string(s.session.ID()),
		View:      view,
		Text:      s.session.Transcript(transcript.ViewMode(view)),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses := s.session.Analyses()
	if analyses == nil {
		analyses = []backend.CombinedAnalysis{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analyses)
}

// analyzeRequest is the JSON body for POST /api/analyze.
type analyzeRequest struct {
	BufferID int64                  `json:"buffer_id"`
	Text     string                 `json:"text"`
	Types    []backend.AnalysisType `json:"analysis_types,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		http.Error(w, `{"error":"analysis not configured"}`, http.StatusServiceUnavailable)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}

	combined, err := s.analyzer.AnalyzeText(r.Context(), req.BufferID, req.Text, req.Types)
	if err != nil {
		slog.Error("manual analysis failed", "buffer_id", req.BufferID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(combined)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	recs := s.recordings.Visible()
	if recs == nil {
		recs = []backend.Recording{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

type recordingCreateRequest struct {
	FolderID string `json:"folder_id"`
	Name     string `json:"name"`
}

func (s *Server) handleRecordingCreate(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		http.Error(w, `{"error":"recording mutations not configured"}`, http.StatusServiceUnavailable)
		return
	}
	var req recordingCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}

	rec, err := s.remote.Create(r.Context(), backend.FolderID(req.FolderID), req.Name)
	if err != nil {
		slog.Error("create recording failed", "name", req.Name, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

type recordingRenameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRecordingRename(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		http.Error(w, `{"error":"recording mutations not configured"}`, http.StatusServiceUnavailable)
		return
	}
	var req recordingRenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name is required"}`, http.StatusBadRequest)
		return
	}

	id := backend.RecordingID(r.PathValue("id"))
	rec, err := s.remote.Rename(r.Context(), id, req.Name)
	if err != nil {
		if errors.Is(err, recordings.ErrNotFound) {
			http.Error(w, `{"error":"recording not found"}`, http.StatusNotFound)
			return
		}
		slog.Error("rename recording failed", "id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (s *Server) handleRecordingDelete(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		http.Error(w, `{"error":"recording mutations not configured"}`, http.StatusServiceUnavailable)
		return
	}

	id := backend.RecordingID(r.PathValue("id"))
	if err := s.remote.Delete(r.Context(), id); err != nil {
		if errors.Is(err, recordings.ErrNotFound) {
			http.Error(w, `{"error":"recording not found"}`, http.StatusNotFound)
			return
		}
		slog.Error("delete recording failed", "id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, `{"error":"q is required"}`, http.StatusBadRequest)
		return
	}

	mode := backend.SearchModeSemantic
	if m := r.URL.Query().Get("mode"); m != "" {
		switch backend.SearchMode(m) {
		case backend.SearchModeSemantic, backend.SearchModeKeyword, backend.SearchModeHybrid:
			mode = backend.SearchMode(m)
		default:
			http.Error(w, `{"error":"unknown search mode"}`, http.StatusBadRequest)
			return
		}
	}

	var filters backend.SearchFilters
	filters.ProjectID = r.URL.Query().Get("project_id")
	if tk := r.URL.Query().Get("top_k"); tk != "" {
		if n, err := strconv.Atoi(tk); err == nil && n > 0 {
			filters.TopK = n
		}
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from != "" || to != "" {
		filters.DateRange = &backend.DateRange{From: from, To: to}
	}

	results, err := s.searcher.SearchNow(r.Context(), q, filters, mode)
	if err != nil {
		slog.Error("search failed", "query", q, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.session.Clear(r.Context())
	if err != nil {
		slog.Error("session clear failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"cleared_session_id": string(cleared),
		"session_id":         string(s.session.ID()),
	})
}

type archivedSessionResponse struct {
	ID            string `json:"id"`
	StartedAt     string `json:"started_at"`
	ClearedAt     string `json:"cleared_at"`
	AnalysisCount int    `json:"analysis_count"`
}

func (s *Server) handleArchivedSessions(w http.ResponseWriter, r *http.Request) {
	if s.archived == nil {
		http.Error(w, `{"error":"archive not configured"}`, http.StatusServiceUnavailable)
		return
	}
	rows, err := s.archived.List(r.Context())
	if err != nil {
		slog.Error("list archived sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]archivedSessionResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, archivedSessionResponse{
			ID:            row.ID,
			StartedAt:     row.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			ClearedAt:     row.ClearedAt.Format("2006-01-02T15:04:05Z07:00"),
			AnalysisCount: len(row.Analyses),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type archivedSessionDetail struct {
	ID        string                     `json:"id"`
	StartedAt string                     `json:"started_at"`
	ClearedAt string                     `json:"cleared_at"`
	Raw       string                     `json:"raw_transcript"`
	Enhanced  string                     `json:"enhanced_transcript"`
	Analyses  []backend.CombinedAnalysis `json:"analyses"`
}

func (s *Server) handleArchivedSession(w http.ResponseWriter, r *http.Request) {
	if s.archived == nil {
		http.Error(w, `{"error":"archive not configured"}`, http.StatusServiceUnavailable)
		return
	}
	row, err := s.archived.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("get archived session failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if row == nil {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(archivedSessionDetail{
		ID:        row.ID,
		StartedAt: row.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		ClearedAt: row.ClearedAt.Format("2006-01-02T15:04:05Z07:00"),
		Raw:       row.RawTranscript,
		Enhanced:  row.Enhanced,
		Analyses:  row.Analyses,
	})
}
