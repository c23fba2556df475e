package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notebookrag/internal/chunker"
	"notebookrag/internal/config"
	"notebookrag/internal/domain"
	"notebookrag/internal/embedding/tfidf"
	"notebookrag/internal/generator/extractive"
	"notebookrag/internal/loader"
	"notebookrag/internal/service"
	"notebookrag/internal/session"
	"notebookrag/internal/vectorstore/memory"
)

const sample = "Photosynthesis converts light energy into chemical energy. " +
	"Chlorophyll absorbs mostly blue and red light. " +
	"The Calvin cycle fixes carbon dioxide into sugars."

func newTestAPI(t *testing.T, gen domain.Generator) (*API, *session.Registry) {
	t.Helper()
	c, err := chunker.NewWordChunker(8, 2)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	in := service.NewIngester(loader.New(), c, tfidf.NewEmbedder(), memory.Open)
	reg := session.NewRegistry()
	t.Cleanup(func() { _ = reg.Close() })
	cfg := config.ServerConfig{
		MaxFileSizeMB:  1,
		UploadDir:      t.TempDir(),
		AllowedOrigins: []string{"http://localhost:8501"},
	}
	if gen == nil {
		gen = extractive.New(2)
	}
	r := service.NewRetrievalService(gen, 3, 0, nil)
	return New(in, r, reg, cfg, Info{Embedder: "tfidf", Generator: gen.Name(), TopK: 3}, nil), reg
}

func upload(t *testing.T, h http.Handler, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postJSON(h http.Handler, path string, v any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(v)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b)))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("json: %v (%s)", err, rr.Body.String())
	}
	return e
}

func TestHealthAndRoot(t *testing.T) {
	a, _ := newTestAPI(t, nil)
	h := a.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	var health map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &health)
	if health["status"] != "ok" || health["embedder"] != "tfidf" || health["top_k"] != float64(3) {
		t.Fatalf("unexpected health %v", health)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "running") {
		t.Fatalf("unexpected root response %d %s", rr.Code, rr.Body.String())
	}
}

func TestUploadQueryRetrieveFlow(t *testing.T) {
	a, reg := newTestAPI(t, nil)
	h := a.Handler()

	rr := upload(t, h, "bio.txt", []byte(sample))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload code=%d body=%s", rr.Code, rr.Body.String())
	}
	var up uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &up); err != nil {
		t.Fatalf("json: %v", err)
	}
	if up.DocID == "" || up.Filename != "bio.txt" || up.Status != "ready" || up.ChunkCount == 0 {
		t.Fatalf("unexpected upload response %+v", up)
	}
	if len(reg.List()) != 1 {
		t.Fatalf("expected session to be registered")
	}

	rr = postJSON(h, "/api/chat/query", queryRequest{DocID: up.DocID, Mode: "qa", Question: "what does chlorophyll absorb", TopK: 2})
	if rr.Code != http.StatusOK {
		t.Fatalf("query code=%d body=%s", rr.Code, rr.Body.String())
	}
	var qr queryResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &qr)
	if qr.Answer == "" || len(qr.Citations) != 2 || !strings.HasSuffix(qr.Citations[0].Source, "bio.txt") {
		t.Fatalf("unexpected query response %+v", qr)
	}

	rr = postJSON(h, "/api/chat/retrieve", queryRequest{DocID: up.DocID, Question: "Calvin cycle"})
	if rr.Code != http.StatusOK {
		t.Fatalf("retrieve code=%d body=%s", rr.Code, rr.Body.String())
	}
	var ans service.Answer
	_ = json.Unmarshal(rr.Body.Bytes(), &ans)
	if !strings.Contains(ans.Context, "Calvin") || len(ans.Citations) != 3 {
		t.Fatalf("unexpected retrieve response %+v", ans)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/documents/", nil))
	var docs []documentInfo
	_ = json.Unmarshal(rr.Body.Bytes(), &docs)
	if len(docs) != 1 || docs[0].DocID != up.DocID {
		t.Fatalf("unexpected documents %+v", docs)
	}
}

func TestUploadRejections(t *testing.T) {
	a, _ := newTestAPI(t, nil)
	h := a.Handler()

	if rr := upload(t, h, "data.csv", []byte("a,b")); rr.Code != http.StatusBadRequest {
		t.Fatalf("csv: code=%d", rr.Code)
	}
	if rr := upload(t, h, "blank.txt", []byte("  \n\f  ")); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank: code=%d body=%s", rr.Code, rr.Body.String())
	}
	big := bytes.Repeat([]byte("word "), 300<<10)
	if rr := upload(t, h, "big.txt", big); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("big: code=%d", rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/documents/upload", strings.NewReader("nope")))
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Error != "invalid_request" {
		t.Fatalf("missing file: code=%d", rr.Code)
	}
}

func TestQueryErrors(t *testing.T) {
	a, reg := newTestAPI(t, nil)
	h := a.Handler()

	rr := postJSON(h, "/api/chat/query", queryRequest{DocID: "x", Mode: "poem"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad mode: code=%d", rr.Code)
	}

	empty := session.New("empty")
	reg.Put(empty)
	rr = postJSON(h, "/api/chat/query", queryRequest{DocID: "missing", Mode: "summary"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing session: code=%d", rr.Code)
	}
	rr = postJSON(h, "/api/chat/query", queryRequest{DocID: empty.ID, Mode: "summary"})
	if rr.Code != http.StatusConflict || decodeError(t, rr).Error != "not_ready" {
		t.Fatalf("not ready: code=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat/query", strings.NewReader("{")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: code=%d", rr.Code)
	}
}

func TestQueryBeforeAnyUploadIsNotReady(t *testing.T) {
	a, _ := newTestAPI(t, nil)
	h := a.Handler()

	for _, tc := range []struct {
		path string
		req  queryRequest
	}{
		{"/api/chat/query", queryRequest{Mode: "summary"}},
		{"/api/chat/query", queryRequest{DocID: "unknown", Mode: "qa", Question: "what?"}},
		{"/api/chat/retrieve", queryRequest{Question: "what?"}},
	} {
		rr := postJSON(h, tc.path, tc.req)
		if rr.Code != http.StatusConflict || decodeError(t, rr).Error != "not_ready" {
			t.Fatalf("%s %+v: code=%d body=%s", tc.path, tc.req, rr.Code, rr.Body.String())
		}
	}

	rr := upload(t, h, "bio.txt", []byte(sample))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload code=%d", rr.Code)
	}
	rr = postJSON(h, "/api/chat/query", queryRequest{Mode: "summary"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("query without doc_id: code=%d", rr.Code)
	}
}

type failingGenerator struct{}

func (failingGenerator) Name() string { return "down" }

func (failingGenerator) Generate(context.Context, domain.Prompt) (string, error) {
	return "", errors.New("connection refused")
}

func TestQueryGeneratorUnavailable(t *testing.T) {
	a, _ := newTestAPI(t, failingGenerator{})
	h := a.Handler()
	rr := upload(t, h, "bio.txt", []byte(sample))
	var up uploadResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &up)

	rr = postJSON(h, "/api/chat/query", queryRequest{DocID: up.DocID, Mode: "faq"})
	if rr.Code != http.StatusBadGateway || decodeError(t, rr).Error != "upstream_unavailable" {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCORS(t *testing.T) {
	a, _ := newTestAPI(t, nil)
	h := a.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/query", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:8501" {
		t.Fatalf("preflight: code=%d headers=%v", rr.Code, rr.Header())
	}

	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials for a listed origin")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected CORS header for foreign origin")
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	a, _ := newTestAPI(t, nil)
	a.cfg.AllowedOrigins = []string{"*"}
	h := a.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("wildcard origin must not allow credentials")
	}
}
