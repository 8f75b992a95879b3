package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate_OutputText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["instructions"] != "do the thing" {
			t.Errorf("instructions: got %v", req["instructions"])
		}
		json.NewEncoder(w).Encode(map[string]any{"output_text": "  rule text \n"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	got, err := c.Generate(context.Background(), "do the thing", "input")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "rule text" {
		t.Errorf("got %q", got)
	}
}

func TestGenerate_OutputArrayFallback(t *testing.T) {
	// WHAT: providers that omit output_text still yield text from the
	// output array parts.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{
				{"content": []map[string]any{{"type": "output_text", "text": "part1 "}}},
				{"content": []map[string]any{{"type": "output_text", "text": "part2"}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	got, err := c.Generate(context.Background(), "", "input")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "part1 part2" {
		t.Errorf("got %q", got)
	}
}

func TestGenerate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	_, err := c.Generate(context.Background(), "", "input")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("want *GenerationError, got %T: %v", err, err)
	}
	if genErr.Op != "generate" {
		t.Errorf("op: got %q", genErr.Op)
	}
}

func TestSearch_SendsWebSearchTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tools []map[string]any `json:"tools"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0]["type"] != "web_search" {
			t.Errorf("tools: got %v", req.Tools)
		}
		json.NewEncoder(w).Encode(map[string]any{"output_text": "1. https://example.com - docs"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"})
	got, err := c.Search(context.Background(), "find docs")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got == "" {
		t.Error("empty search result")
	}
}
