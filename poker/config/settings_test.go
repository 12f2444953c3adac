package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var settingsKeys = []string{
	"HOST", "PORT", "DEBUG", "LOG_FORMAT", "ALLOWED_ORIGINS", "SEND_BUFFER",
	"MAX_MESSAGE_SIZE", "NGROK_ENABLED", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN",
	"NGROK_DOMAIN", "MCP_BASE_URL",
}

// clearEnv unsets every settings variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range settingsKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if s.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %q", s.Host)
	}
	if s.Port != 3000 {
		t.Errorf("Expected default port 3000, got %d", s.Port)
	}
	if s.Debug {
		t.Error("Expected debug off by default")
	}
	if s.LogFormat != LogFormatText {
		t.Errorf("Expected text log format, got %q", s.LogFormat)
	}
	if s.SendBuffer != 256 {
		t.Errorf("Expected send buffer 256, got %d", s.SendBuffer)
	}
	if s.MaxMessageSize != 1000000 {
		t.Errorf("Expected max message size 1000000, got %d", s.MaxMessageSize)
	}
	if len(s.AllowedOrigins) != 0 {
		t.Errorf("Expected no origin restriction, got %v", s.AllowedOrigins)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestParseFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "8081")
	t.Setenv("DEBUG", "true")
	t.Setenv("LOG_FORMAT", " JSON ")
	t.Setenv("ALLOWED_ORIGINS", "http://a.local, http://b.local,")
	t.Setenv("NGROK_ENABLED", "1")
	t.Setenv("NGROK_AUTH_TOKEN", "legacy-token")

	s, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if s.Addr() != "127.0.0.1:8081" {
		t.Errorf("Expected addr 127.0.0.1:8081, got %s", s.Addr())
	}
	if !s.Debug {
		t.Error("Expected debug on")
	}
	if s.LogFormat != LogFormatJSON {
		t.Errorf("Expected json log format, got %q", s.LogFormat)
	}
	if len(s.AllowedOrigins) != 2 || s.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("Expected two trimmed origins, got %q", s.AllowedOrigins)
	}
	if !s.NgrokEnabled {
		t.Error("Expected ngrok enabled")
	}
	if s.NgrokAuthToken != "legacy-token" {
		t.Errorf("Expected fallback auth token, got %q", s.NgrokAuthToken)
	}

	t.Run("primary token name wins", func(t *testing.T) {
		t.Setenv("NGROK_AUTHTOKEN", "primary")
		s, err := Parse()
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		if s.NgrokAuthToken != "primary" {
			t.Errorf("Expected primary token, got %q", s.NgrokAuthToken)
		}
	})
}

func TestParseError(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-port")

	_, err := Parse()
	if err == nil {
		t.Fatal("Expected error for non-numeric port")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("Expected parse env prefix, got %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PORT=4000\nNGROK_DOMAIN=poker.ngrok.app\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	t.Run("file values apply", func(t *testing.T) {
		s, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if s.Port != 4000 {
			t.Errorf("Expected port from file, got %d", s.Port)
		}
		if s.NgrokDomain != "poker.ngrok.app" {
			t.Errorf("Expected domain from file, got %q", s.NgrokDomain)
		}
	})

	t.Run("environment wins over file", func(t *testing.T) {
		t.Setenv("PORT", "5000")
		s, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if s.Port != 5000 {
			t.Errorf("Expected port from environment, got %d", s.Port)
		}
	})

	t.Run("missing file is ignored", func(t *testing.T) {
		if _, err := Load(filepath.Join(dir, "missing.env")); err != nil {
			t.Errorf("Missing env file should be ignored, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{Host: "localhost", Port: 3000, LogFormat: LogFormatText, SendBuffer: 1, MaxMessageSize: 1}
	}

	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"port too large", func(s *Settings) { s.Port = 70000 }},
		{"negative port", func(s *Settings) { s.Port = -1 }},
		{"zero send buffer", func(s *Settings) { s.SendBuffer = 0 }},
		{"zero message size", func(s *Settings) { s.MaxMessageSize = 0 }},
		{"unknown log format", func(s *Settings) { s.LogFormat = "xml" }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Baseline settings should validate: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.modify(s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		s := &Settings{LogFormat: LogFormatJSON}
		s.NewLogger(&buf).Info("room created", "code", "123456")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("Expected JSON log line, got %q", buf.String())
		}
		if entry["code"] != "123456" {
			t.Errorf("Expected code attribute, got %v", entry)
		}
	})

	t.Run("debug level", func(t *testing.T) {
		var buf bytes.Buffer
		(&Settings{LogFormat: LogFormatText}).NewLogger(&buf).Debug("hidden")
		if buf.Len() != 0 {
			t.Errorf("Debug line should be filtered, got %q", buf.String())
		}

		(&Settings{LogFormat: LogFormatText, Debug: true}).NewLogger(&buf).Debug("shown")
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("Expected debug line, got %q", buf.String())
		}
	})
}
