package app

import (
	"context"
	"testing"

	"renovationAi/internal/config"
	"renovationAi/internal/llm"
	"renovationAi/internal/renovation"
)

func renderConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Editor.Backend = "render"
	cfg.Editor.Render.Endpoint = "http://127.0.0.1:1/render"
	cfg.Text.Provider = "none"
	cfg.Media.LocalDir = t.TempDir()
	cfg.MaxSessions = 3
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestNewWiresOfflineStudio(t *testing.T) {
	a, err := New(context.Background(), renderConfig(t), Options{QuietLogs: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer a.Close()

	view, err := a.Service.Create()
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if view.State != renovation.StateIdle || view.View != renovation.ViewInput {
		t.Errorf("Unexpected initial view %+v", view)
	}
	projects, err := a.Service.Projects(context.Background(), 0)
	if err != nil || len(projects) != 0 {
		t.Errorf("Expected empty in-memory archive, got %v (%v)", projects, err)
	}
}

func TestNewTextClient(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		check    func(llm.Client) bool
	}{
		{"none", "none", func(c llm.Client) bool { return c == nil }},
		{"openai", "openai", func(c llm.Client) bool { _, ok := c.(*llm.OpenAIClient); return ok }},
		{"gemini", "gemini", func(c llm.Client) bool { _, ok := c.(*llm.GeminiClient); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Text.Provider = tt.provider
			cfg.Text.OpenAIAPIKey = "sk-test"
			cfg.Google.APIKey = "g-test"
			client, err := newTextClient(context.Background(), cfg)
			if err != nil {
				t.Fatalf("newTextClient returned error: %v", err)
			}
			if !tt.check(client) {
				t.Errorf("Unexpected client %T for provider %q", client, tt.provider)
			}
		})
	}
}

func TestNewRejectsBadServiceAccount(t *testing.T) {
	cfg := config.Default()
	cfg.Text.Provider = "gemini"
	cfg.Google.ServiceAccountJSON = "{not json"
	if _, err := newTextClient(context.Background(), cfg); err == nil {
		t.Error("Expected malformed service account JSON to be rejected")
	}
}
