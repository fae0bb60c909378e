package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"renovationAi/internal/imaging"
)

func captureServer(t *testing.T, reply string, status int, captured *map[string]any, path *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, captured); err != nil {
			t.Errorf("request body is not json: %v", err)
		}
		*path = r.URL.String()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
}

func TestGeminiChatCompletion(t *testing.T) {
	var captured map[string]any
	var path string
	srv := captureServer(t, `{"candidates":[{"content":{"parts":[{"text":" hello "},{"text":"world"}]}}]}`, http.StatusOK, &captured, &path)
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "k", Model: "models/gemini-test", BaseURL: srv.URL})
	img := imaging.Image{Data: []byte{1, 2, 3}, MIME: "image/jpeg"}
	ctx := WithJSONResponse(context.Background())

	got, err := client.ChatCompletion(ctx, []ChatMessage{
		{Role: "system", Content: "be brief"},
		UserWithImage("describe", img),
	}, 0.2)
	if err != nil {
		t.Fatalf("ChatCompletion returned error: %v", err)
	}
	if got != "hello\n\nworld" {
		t.Errorf("Expected joined parts, got %q", got)
	}
	if !strings.HasPrefix(path, "/models/gemini-test:generateContent?key=k") {
		t.Errorf("Unexpected request path %s", path)
	}

	cfg, _ := captured["generationConfig"].(map[string]any)
	if cfg["responseMimeType"] != "application/json" {
		t.Errorf("Expected JSON response mime type, got %v", cfg["responseMimeType"])
	}
	if _, ok := captured["systemInstruction"]; !ok {
		t.Error("Expected system instruction to be set")
	}
	contents, _ := captured["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("Expected one content entry, got %d", len(contents))
	}
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %d", len(parts))
	}
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	if inline["mime_type"] != "image/jpeg" || inline["data"] != "AQID" {
		t.Errorf("Unexpected inline data %v", inline)
	}
}

func TestGeminiModelOverride(t *testing.T) {
	var captured map[string]any
	var path string
	srv := captureServer(t, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`, http.StatusOK, &captured, &path)
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	ctx := WithModel(context.Background(), "gemini-other")
	if _, err := client.ChatCompletion(ctx, []ChatMessage{{Role: "user", Content: "hi"}}, 0); err != nil {
		t.Fatalf("ChatCompletion returned error: %v", err)
	}
	if !strings.HasPrefix(path, "/models/gemini-other:") {
		t.Errorf("Expected override model in path, got %s", path)
	}
	cfg, _ := captured["generationConfig"].(map[string]any)
	if _, ok := cfg["responseMimeType"]; ok {
		t.Error("Did not expect a response mime type without WithJSONResponse")
	}
}

func TestGeminiErrors(t *testing.T) {
	var captured map[string]any
	var path string

	t.Run("status error", func(t *testing.T) {
		srv := captureServer(t, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests, &captured, &path)
		defer srv.Close()
		client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: srv.URL})
		_, err := client.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0)
		if err == nil || !strings.Contains(err.Error(), "quota") {
			t.Errorf("Expected quota error, got %v", err)
		}
	})

	t.Run("empty candidate", func(t *testing.T) {
		srv := captureServer(t, `{"candidates":[]}`, http.StatusOK, &captured, &path)
		defer srv.Close()
		client := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: srv.URL})
		_, err := client.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0)
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("Expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		client := NewGeminiClient(GeminiConfig{BaseURL: "http://127.0.0.1:1"})
		if _, err := client.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0); err == nil {
			t.Error("Expected error without credentials")
		}
	})
}

func TestOpenAIChatCompletion(t *testing.T) {
	var captured map[string]any
	var path string
	srv := captureServer(t, `{"choices":[{"message":{"content":"{\"summary\":\"s\"}"}}]}`, http.StatusOK, &captured, &path)
	defer srv.Close()

	client := NewOpenAIClient("secret", "", srv.URL, 0)
	img := imaging.Image{Data: []byte{1, 2, 3}, MIME: "image/png"}
	got, err := client.ChatCompletion(WithJSONResponse(context.Background()), []ChatMessage{
		{Role: "system", Content: "sys"},
		UserWithImage("look", img),
	}, 0.5)
	if err != nil {
		t.Fatalf("ChatCompletion returned error: %v", err)
	}
	if got != `{"summary":"s"}` {
		t.Errorf("Unexpected content %q", got)
	}
	if path != "/chat/completions" {
		t.Errorf("Unexpected path %s", path)
	}
	if captured["model"] != defaultOpenAIModel {
		t.Errorf("Expected default model, got %v", captured["model"])
	}
	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("Expected json_object response format, got %v", captured["response_format"])
	}

	messages := captured["messages"].([]any)
	if content, ok := messages[0].(map[string]any)["content"].(string); !ok || content != "sys" {
		t.Errorf("Expected plain string content for text-only message, got %v", messages[0])
	}
	parts := messages[1].(map[string]any)["content"].([]any)
	imagePart := parts[1].(map[string]any)
	url := imagePart["image_url"].(map[string]any)["url"].(string)
	if url != "data:image/png;base64,AQID" {
		t.Errorf("Unexpected image url %s", url)
	}
}

func TestOpenAINoChoices(t *testing.T) {
	var captured map[string]any
	var path string
	srv := captureServer(t, `{"choices":[]}`, http.StatusOK, &captured, &path)
	defer srv.Close()

	client := NewOpenAIClient("secret", "gpt-test", srv.URL, 0)
	_, err := client.ChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}
