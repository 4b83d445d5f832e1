package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	hot := float32(2.5)
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{APIKey: "k", Model: "gpt-4o-mini"}, true},
		{"no key", Config{Model: "m"}, false},
		{"no model", Config{APIKey: "k"}, false},
		{"temperature", Config{APIKey: "k", Model: "m", Temperature: &hot}, false},
		{"retries", Config{APIKey: "k", Model: "m", MaxRetries: -1}, false},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); (err == nil) != tc.ok {
			t.Errorf("%s: Validate() = %v", tc.name, err)
		}
	}
}

func TestComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", Model: "m", BaseURL: srv.URL + "/v1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	answer, err := c.Complete(context.Background(), "say hello")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "hello" {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != "m" || len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "say hello" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", Model: "m", BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Error("expected error for empty choices")
	}
}
