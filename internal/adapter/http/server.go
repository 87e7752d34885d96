package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

// maxBodyBytes caps a link submission body.
const maxBodyBytes = 64 << 10

// Server is the HTTP adapter for link intake and journal lookups.
type Server struct {
	links   *domain.LinkService
	journal domain.Journal
	mux     *http.ServeMux
	server  *http.Server
	secret  string
	log     logger.Logger
}

// NewServer creates a new HTTP server. A non-empty secret requires signed
// submissions.
func NewServer(links *domain.LinkService, journal domain.Journal, addr, secret string, log logger.Logger) *Server {
	s := &Server{
		links:   links,
		journal: journal,
		mux:     http.NewServeMux(),
		secret:  secret,
		log:     log,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /links", s.handleSubmit)
	s.mux.HandleFunc("GET /links/{hash}", s.handleGetLink)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// submitRequest is the request body for POST /links.
type submitRequest struct {
	URL string `json:"url"`
}

type submitResponse struct {
	Hash     string `json:"hash"`
	URL      string `json:"url"`
	Inserted bool   `json:"inserted"`
}

// entryResponse is the JSON form of a journal entry.
type entryResponse struct {
	Hash      string `json:"hash"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Reason    string `json:"reason,omitempty"`
	Comments  int    `json:"comments"`
	UpdatedAt string `json:"updated_at"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if s.secret != "" {
		if err := s.verifySignature(r, body); err != nil {
			s.log.Warn("submission rejected", logger.Err(err))
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	var req submitRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	link, inserted, err := s.links.Submit(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidURL) {
			s.writeError(w, http.StatusBadRequest, "invalid URL")
			return
		}
		s.log.Error("submit failed", logger.String("url", req.URL), logger.Err(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
		s.log.Info("link submitted", logger.String("hash", link.Hash), logger.String("url", link.URL))
	}
	s.writeJSON(w, status, submitResponse{Hash: link.Hash, URL: link.URL, Inserted: inserted})
}

const maxTimestampSkew = 5 * time.Minute

// verifySignature checks X-Signature = hex(HMAC-SHA256(secret, timestamp + "." + body))
// and that X-Timestamp is recent.
func (s *Server) verifySignature(r *http.Request, body []byte) error {
	timestamp := r.Header.Get("X-Timestamp")
	if timestamp == "" {
		return errors.New("missing X-Timestamp header")
	}
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return errors.New("invalid X-Timestamp: must be RFC3339")
	}
	if skew := time.Since(ts).Abs(); skew > maxTimestampSkew {
		return fmt.Errorf("X-Timestamp too far from current time (skew: %v, max: %v)", skew.Truncate(time.Second), maxTimestampSkew)
	}

	signature, err := hex.DecodeString(r.Header.Get("X-Signature"))
	if err != nil || len(signature) == 0 {
		return errors.New("missing or malformed X-Signature header")
	}
	if !hmac.Equal(signature, Sign(s.secret, timestamp, body)) {
		return errors.New("invalid signature")
	}
	return nil
}

// Sign returns the HMAC a client sends (hex-encoded) in X-Signature.
func Sign(secret, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	entry, err := s.journal.Status(r.Context(), r.PathValue("hash"))
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			s.writeError(w, http.StatusNotFound, "link not found")
			return
		}
		s.log.Error("get link failed", logger.Err(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, entryToResponse(entry))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.journal.Counts(r.Context())
	if err != nil {
		s.log.Error("stats failed", logger.Err(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func entryToResponse(e *domain.JournalEntry) entryResponse {
	return entryResponse{
		Hash:      e.Hash,
		URL:       e.URL,
		Status:    string(e.Status),
		Attempts:  e.Attempts,
		Reason:    e.Reason,
		Comments:  e.Comments,
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ListenAndServe starts the HTTP server; it returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
