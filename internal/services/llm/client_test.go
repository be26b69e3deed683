package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notecast/internal/services"
	"notecast/internal/services/retry"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func writeChoice(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}}); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": "```json\n{\"ok\":true}\n```"}})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientGenerateSendsPromptAndHeaders(t *testing.T) {
	var captured chatCompletionRequest
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "Notecast" {
			t.Errorf("unexpected title header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": "  summary text  "}})
	})

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "default-model", Title: "Notecast"})
	out, err := client.Generate(context.Background(), Request{
		Model:       "vendor/custom",
		System:      "be brief",
		User:        "source body",
		Temperature: 0.4,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "summary text" {
		t.Fatalf("unexpected output %q", out)
	}
	if captured.Model != "vendor/custom" {
		t.Fatalf("expected request model override, got %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "source body" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if captured.ResponseFormat != nil {
		t.Fatalf("expected no response format for text request, got %v", captured.ResponseFormat)
	}
	if captured.Temperature != 0.4 {
		t.Fatalf("unexpected temperature %v", captured.Temperature)
	}
}

func TestClientGenerateJSONRequestsObjectFormat(t *testing.T) {
	var captured chatCompletionRequest
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{"turns":[]}`}})
	})

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	if _, err := client.Generate(context.Background(), Request{User: "go", JSON: true}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if captured.ResponseFormat["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", captured.ResponseFormat)
	}
	if captured.Model != "m" {
		t.Fatalf("expected configured model, got %q", captured.Model)
	}
}

func TestClientGenerateToolCallsArguments(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChoice(t, w, map[string]any{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{
					map[string]any{
						"type":     "function",
						"id":       "call_1",
						"function": map[string]any{"name": "script", "arguments": `{"turns":[{"speaker":1,"text":"hi"}]}`},
					},
				},
			},
		})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	out, err := client.Generate(context.Background(), Request{User: "x", JSON: true})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(out, `"turns"`) {
		t.Fatalf("expected tool call arguments, got %q", out)
	}
}

func TestClientGenerateDeltaAndLegacyText(t *testing.T) {
	for name, choice := range map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": "from delta"}},
		"legacy": {"finish_reason": "stop", "text": "from text"},
	} {
		t.Run(name, func(t *testing.T) {
			server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeChoice(t, w, choice)
			})
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
			out, err := client.Generate(context.Background(), Request{User: "x"})
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if !strings.HasPrefix(out, "from ") {
				t.Fatalf("unexpected output %q", out)
			}
		})
	}
}

func TestClientGenerateEmptyContentHasSnippet(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChoice(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}})
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryPolicy(retry.Policy{MaxAttempts: 2, Sleeper: func(time.Duration) {}}),
	)
	_, err := client.Generate(context.Background(), Request{User: "x"})
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": "done"}})
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryPolicy(retry.Policy{
			MaxAttempts: 5,
			MaxDelay:    10 * time.Second,
			Sleeper:     func(d time.Duration) { slept = append(slept, d) },
		}),
	)
	out, err := client.Generate(context.Background(), Request{User: "x"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "done" {
		t.Fatalf("unexpected output %q", out)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = "third time"
		}
		writeChoice(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}})
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryPolicy(retry.Policy{MaxAttempts: 5, Sleeper: func(time.Duration) {}}),
	)
	out, err := client.Generate(context.Background(), Request{User: "x"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "third time" || calls != 3 {
		t.Fatalf("unexpected result %q after %d calls", out, calls)
	}
}

func TestClientGenerateRequiresKeyAndPrompt(t *testing.T) {
	client := NewClient(Config{Model: "m"})
	if _, err := client.Generate(context.Background(), Request{User: "x"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	client = NewClient(Config{APIKey: "k", Model: "m"})
	if _, err := client.Generate(context.Background(), Request{User: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
