package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notebookrag/internal/domain"
)

func TestNewClient_RequiresKeyForPublicAPI(t *testing.T) {
	t.Setenv("GEN_KEY", "")
	if _, err := NewClient(Config{APIKeyEnv: "GEN_KEY"}); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewClient(Config{APIKeyEnv: "GEN_KEY", BaseURL: "http://localhost:11434/v1"}); err != nil {
		t.Fatalf("local endpoint should not need a key: %v", err)
	}
}

func TestGenerate_SendsPrompt(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  The answer.  "}}]}`))
	}))
	defer srv.Close()

	t.Setenv("GEN_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "GEN_KEY", Model: "m", Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	out, err := c.Generate(context.Background(), domain.Prompt{Mode: "qa", Context: "ctx", Question: "why?"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "The answer." {
		t.Fatalf("unexpected answer %q", out)
	}
	if got.Model != "m" || len(got.Messages) != 2 || !strings.Contains(got.Messages[1].Content, "Question:\nwhy?") {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestGenerate_ServerErrorIsCollaboratorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()
	t.Setenv("GEN_KEY", "sk-test")
	c, _ := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "GEN_KEY", Timeout: time.Second})
	_, err := c.Generate(context.Background(), domain.Prompt{Context: "x"})
	if !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Fatalf("expected ErrCollaboratorUnavailable, got %v", err)
	}
}
