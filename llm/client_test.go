package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"shorts-factory/config"
)

func chatServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(config.LLMConfig{BaseURL: url, Model: "test-model", APIKey: "test-key"}, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestComplete(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, "hello there", &seen)
	defer srv.Close()

	got, err := testClient(t, srv.URL).Complete(context.Background(), "be brief", "say hi")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello there" {
		t.Errorf("content = %q", got)
	}
	if seen["model"] != "test-model" {
		t.Errorf("model sent = %v", seen["model"])
	}
	msgs, _ := seen["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("messages sent = %d, want system+user", len(msgs))
	}
}

type reply struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestStructuredSendsSchemaAndDecodes(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, "```json\n{\"title\":\"Coffee\",\"tags\":[\"a\",\"b\"]}\n```", &seen)
	defer srv.Close()

	out, err := Structured[reply](context.Background(), testClient(t, srv.URL), "reply", "", "go", Schema[reply]())
	if err != nil {
		t.Fatalf("Structured: %v", err)
	}
	if out.Title != "Coffee" || len(out.Tags) != 2 {
		t.Errorf("decoded = %+v", out)
	}
	rf, _ := seen["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format = %v", seen["response_format"])
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(config.LLMConfig{Model: "m"}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"```\n[1,2]\n```", `[1,2]`},
		{"no json here", "no json here"},
	}
	for _, tt := range tests {
		if got := CleanJSON(tt.in); got != tt.want {
			t.Errorf("CleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeError(t *testing.T) {
	if _, err := Decode[reply]("not json"); err == nil {
		t.Error("expected parse error")
	}
}
