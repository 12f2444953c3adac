package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Log formats accepted by LOG_FORMAT.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Settings holds the server configuration.
type Settings struct {
	Host  string `env:"HOST" envDefault:"0.0.0.0"`
	Port  int    `env:"PORT" envDefault:"3000"`
	Debug bool   `env:"DEBUG"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// WebSocket gateway
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	SendBuffer     int      `env:"SEND_BUFFER" envDefault:"256"`
	MaxMessageSize int64    `env:"MAX_MESSAGE_SIZE" envDefault:"1000000"`

	// Tunnel
	NgrokEnabled   bool   `env:"NGROK_ENABLED"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`

	MCPBaseURL string `env:"MCP_BASE_URL" envDefault:"http://localhost:3000"`
}

// Load seeds the environment from envFile, when it exists, and parses
// Settings from the environment. Variables already set win over the file.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse()
}

// Parse reads Settings from the environment only.
func Parse() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if s.NgrokAuthToken == "" {
		s.NgrokAuthToken = os.Getenv("NGROK_AUTH_TOKEN")
	}
	s.AllowedOrigins = trimAll(s.AllowedOrigins)
	s.LogFormat = strings.ToLower(strings.TrimSpace(s.LogFormat))
	return &s, nil
}

// Validate reports the first invalid setting.
func (s *Settings) Validate() error {
	switch {
	case s.Port < 0 || s.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidSettings, s.Port)
	case s.SendBuffer <= 0:
		return fmt.Errorf("%w: send buffer must be positive, got %d", ErrInvalidSettings, s.SendBuffer)
	case s.MaxMessageSize <= 0:
		return fmt.Errorf("%w: max message size must be positive, got %d", ErrInvalidSettings, s.MaxMessageSize)
	case s.LogFormat != LogFormatText && s.LogFormat != LogFormatJSON:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidSettings, s.LogFormat)
	}
	return nil
}

// Addr returns the host:port listen address.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// NewLogger builds a logger writing to w in the configured format.
func (s *Settings) NewLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: s.Debug}

	if s.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
