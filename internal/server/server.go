// Package server exposes the anonymization engine over a local HTTP API.
// Handlers are thin: they translate requests into engine options, run the
// pipeline and map typed errors onto status codes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"cloak/internal/anonymize"
	"cloak/internal/audit"
	"cloak/internal/detect"
	"cloak/internal/extract"
	"cloak/internal/redact"
	"cloak/internal/session"
	"cloak/internal/stats"
)

// Options carries the per-request defaults a daemon config establishes. The
// audit log path is read back by the stats endpoint.
type Options struct {
	Anonymize    anonymize.Options
	AuditLogPath string
}

type Server struct {
	anonymizer *anonymize.Anonymizer
	sessions   *session.Store
	auditor    audit.Logger
	log        *slog.Logger
	opts       Options
	startedAt  time.Time

	httpServer *http.Server
}

func New(addr string, anonymizer *anonymize.Anonymizer, auditor audit.Logger, log *slog.Logger, opts Options) *Server {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		anonymizer: anonymizer,
		sessions:   session.NewStore(),
		auditor:    auditor,
		log:        log,
		opts:       opts,
		startedAt:  time.Now().UTC(),
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /anonymize/text", s.handleAnonymizeText)
	mux.HandleFunc("POST /anonymize", s.handleAnonymize)
	mux.HandleFunc("POST /anonymize/file", s.handleAnonymizeFile)
	mux.HandleFunc("POST /deanonymize", s.handleDeanonymize)
	return mux
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestOptions are the per-request overrides a client may send. Absent
// fields fall back to the daemon's configured defaults.
type requestOptions struct {
	Strategy      string   `json:"strategy,omitempty"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
	Labels        []string `json:"labels,omitempty"`
	MaxChars      int      `json:"max_chars,omitempty"`
	OverlapChars  int      `json:"overlap_chars,omitempty"`
	LabelPriority []string `json:"label_priority,omitempty"`
}

type anonymizeRequest struct {
	Text    string         `json:"text"`
	Options requestOptions `json:"options"`
}

type anonymizeFileRequest struct {
	Path    string         `json:"path"`
	Options requestOptions `json:"options"`
}

type deanonymizeRequest struct {
	RedactedText string               `json:"redacted_text"`
	Applied      []redact.AppliedSpan `json:"applied_spans"`
}

type anonymizeResponse struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id,omitempty"`
	anonymize.Result
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	entries, err := audit.ParseFile(s.opts.AuditLogPath)
	if err != nil {
		writeError(w, err)
		return
	}
	st := stats.CollectFromEntries(entries, stats.Options{
		Status: "running",
		Uptime: time.Since(s.startedAt),
	})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAnonymizeText(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := requestOptions{Strategy: q.Get("strategy")}
	s.anonymizeAndRespond(w, r, q.Get("text"), opts, nil)
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	s.anonymizeAndRespond(w, r, req.Text, req.Options, nil)
}

func (s *Server) handleAnonymizeFile(w http.ResponseWriter, r *http.Request) {
	var req anonymizeFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path is required"})
		return
	}
	doc, err := extract.File(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	s.anonymizeAndRespond(w, r, doc.Text, req.Options, doc.Markers)
}

func (s *Server) handleDeanonymize(w http.ResponseWriter, r *http.Request) {
	var req deanonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"text": redact.Restore(req.RedactedText, req.Applied),
	})
}

func (s *Server) anonymizeAndRespond(w http.ResponseWriter, r *http.Request, text string, reqOpts requestOptions, markers []int) {
	requestID := uuid.NewString()
	opts := s.mergeOptions(reqOpts)
	opts.Markers = markers

	// "new" asks the server to mint the session ID; the response echoes it so
	// the client can reuse it on later calls.
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "new" {
		sessionID = session.GenerateID()
	}
	var sess *session.Session
	if sessionID != "" {
		sess = s.sessions.Acquire(sessionID)
		sess.Mu.Lock()
		opts.Replacements = sess.Replacements
	}

	start := time.Now()
	result, err := s.anonymizer.Anonymize(r.Context(), text, opts)
	if sess != nil {
		sess.Mu.Unlock()
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	entry := audit.Entry{
		RequestID: requestID,
		DocLen:    len(text),
		Strategy:  string(opts.Strategy),
		ElapsedMs: elapsed,
		Status:    "ok",
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	} else {
		entry.Chunks = result.Stats.ChunkCount
		entry.Candidates = result.Stats.CandidateSpans
		entry.Resolved = result.Stats.ResolvedSpans
		entry.Entities = result.Stats.TotalEntities
		entry.ByLabel = result.Stats.ByLabel
	}
	if aerr := s.auditor.Log(entry); aerr != nil {
		s.log.Warn("audit log write failed", "error", aerr)
	}

	if err != nil {
		s.log.Error("anonymize request failed", "request_id", requestID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, anonymizeResponse{
		RequestID: requestID,
		SessionID: sessionID,
		Result:    result,
	})
}

func (s *Server) mergeOptions(req requestOptions) anonymize.Options {
	opts := s.opts.Anonymize
	if req.Strategy != "" {
		opts.Strategy = redact.Strategy(req.Strategy)
	}
	if req.MinConfidence != 0 {
		opts.MinConfidence = req.MinConfidence
	}
	if req.Labels != nil {
		opts.Labels = req.Labels
	}
	if req.MaxChars != 0 {
		opts.MaxChars = req.MaxChars
	}
	if req.OverlapChars != 0 {
		opts.OverlapChars = req.OverlapChars
	}
	if req.LabelPriority != nil {
		opts.LabelPriority = req.LabelPriority
	}
	return opts
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var cfgErr *anonymize.ConfigError
	var fmtErr *extract.UnsupportedFormatError
	switch {
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.As(err, &fmtErr):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, detect.ErrInferenceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
