// Package api exposes ingestion and retrieval over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"notebookrag/internal/config"
	"notebookrag/internal/domain"
	"notebookrag/internal/loader"
	"notebookrag/internal/service"
	"notebookrag/internal/session"
)

// Ingester indexes uploaded files into a new session.
type Ingester interface {
	IngestPaths(ctx context.Context, paths []string) (*session.Session, error)
}

// Retriever answers questions against a session.
type Retriever interface {
	Answer(ctx context.Context, s *session.Session, query string, topK int) (service.Answer, error)
	Generate(ctx context.Context, s *session.Session, task service.Task, topK int) (service.Response, error)
}

// Info is reported by the health endpoint.
type Info struct {
	Embedder  string `json:"embedder"`
	Generator string `json:"generator"`
	TopK      int    `json:"top_k"`
}

type API struct {
	ingester  Ingester
	retriever Retriever
	sessions  *session.Registry
	cfg       config.ServerConfig
	info      Info
	logger    *slog.Logger
}

func New(in Ingester, r Retriever, sessions *session.Registry, cfg config.ServerConfig, info Info, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{ingester: in, retriever: r, sessions: sessions, cfg: cfg, info: info, logger: logger}
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (a *API) Handler() http.Handler {
	return a.logMiddleware(a.corsMiddleware(a.mux()))
}

func (a *API) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "notebookrag API is running"})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
			Info
		}{Status: "ok", Info: a.info})
	})
	mux.HandleFunc("POST /api/documents/upload", a.handleUpload)
	mux.HandleFunc("GET /api/documents/", a.handleListDocuments)
	mux.HandleFunc("POST /api/chat/query", a.handleQuery)
	mux.HandleFunc("POST /api/chat/retrieve", a.handleRetrieve)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	a.logger.Info("http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type uploadResponse struct {
	DocID      string `json:"doc_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := a.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("file exceeds %d MB", a.cfg.MaxFileSizeMB))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart field \"file\" required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || !loader.Supported(name) {
		writeError(w, http.StatusBadRequest, "invalid_request", "only .pdf, .txt and .md files are supported")
		return
	}
	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("file exceeds %d MB", a.cfg.MaxFileSizeMB))
		return
	}

	path, err := a.save(file, name)
	if err != nil {
		a.logger.Error("save upload", "file", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not store upload")
		return
	}
	s, err := a.ingester.IngestPaths(r.Context(), []string{path})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.sessions.Put(s)
	writeJSON(w, http.StatusOK, uploadResponse{DocID: s.ID, Filename: name, Status: "ready", ChunkCount: s.Len()})
}

// save stores the upload under its own directory so the original file name
// is kept for citations.
func (a *API) save(src io.Reader, name string) (string, error) {
	dir := filepath.Join(a.cfg.UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return path, dst.Close()
}

type documentInfo struct {
	DocID      string    `json:"doc_id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *API) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	list := a.sessions.List()
	out := make([]documentInfo, 0, len(list))
	for _, s := range list {
		out = append(out, documentInfo{DocID: s.ID, Filename: s.Source, ChunkCount: s.Len(), CreatedAt: s.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

type queryRequest struct {
	DocID    string `json:"doc_id"`
	Mode     string `json:"mode"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type queryResponse struct {
	Answer    string            `json:"answer"`
	Citations []domain.Citation `json:"citations"`
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	task, err := service.ParseTask(req.Mode, req.Question)
	if err != nil {
		a.fail(w, err)
		return
	}
	s, err := a.session(req.DocID)
	if err != nil {
		a.fail(w, err)
		return
	}
	resp, err := a.retriever.Generate(r.Context(), s, task, req.TopK)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: resp.Answer, Citations: resp.Citations})
}

func (a *API) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := a.session(req.DocID)
	if err != nil {
		a.fail(w, err)
		return
	}
	ans, err := a.retriever.Answer(r.Context(), s, req.Question, req.TopK)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// session resolves docID. Without an id, or before anything was uploaded,
// there is no document to answer from and the request is not ready.
func (a *API) session(docID string) (*session.Session, error) {
	if strings.TrimSpace(docID) == "" || a.sessions.Len() == 0 {
		return nil, domain.ErrNotReady
	}
	return a.sessions.Get(docID)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return false
	}
	return true
}

// fail maps pipeline errors onto HTTP statuses.
func (a *API) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusConflict, "not_ready", "no document has been indexed for this session")
	case errors.Is(err, domain.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, "no_content", err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		a.logger.Warn("collaborator failed", "err", err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		a.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, apiError{Error: errStr, Message: message, Code: status})
}

func (a *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		switch {
		case origin == "":
		case slices.Contains(a.cfg.AllowedOrigins, origin):
			// Credentials only for explicitly listed origins.
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		case slices.Contains(a.cfg.AllowedOrigins, "*"):
			h.Set("Access-Control-Allow-Origin", "*")
		default:
			origin = ""
		}
		if origin != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		a.logger.Info("http request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", rec.nbytes,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	nbytes int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.nbytes += n
	return n, err
}
