package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Defaults applied by Validate.
const (
	DefaultPort          = 8000
	DefaultContextWindow = 128000
	DefaultMaxOutTokens  = 16384
	DefaultLanguage      = "es"
	DefaultChatModel     = "gpt-4o"
	DefaultRetrievalTopK = 3
	DefaultMaxAttempts   = 3
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where the conversation database lives
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Model provider
	OpenAIAPIKey       string // ORIONCX_OPENAI_API_KEY
	OpenAIBaseURL      string // ORIONCX_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	ChatModel          string // ORIONCX_CHAT_MODEL (default: gpt-4o)
	EmbeddingModel     string // ORIONCX_EMBEDDING_MODEL (default: text-embedding-3-small)
	TranscriptionModel string // ORIONCX_TRANSCRIPTION_MODEL (default: whisper-1)
	MaxAttempts        int    // ORIONCX_MAX_ATTEMPTS (default: 3), model calls per operation including the first

	// Conversation engine
	ContextWindow           int
	MaxOutTokens            int
	DefaultLanguage         string
	RetrievalTopK           int
	ExtractionMode          string // "json" or "raw"
	StrictStatusTransitions bool

	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit float64
	RateBurst int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled reports whether model credentials are configured.
func (p *Profile) IsAIEnabled() bool {
	return p.OpenAIAPIKey != ""
}

// PromptBudget is the token budget left for the prompt.
func (p *Profile) PromptBudget() int {
	return p.ContextWindow - p.MaxOutTokens
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv fills model provider settings from ORIONCX_* environment variables.
// Values already set on the profile win.
func (p *Profile) FromEnv() {
	setString := func(dst *string, key, def string) {
		if *dst == "" {
			*dst = getEnvOrDefault(key, def)
		}
	}

	setString(&p.OpenAIAPIKey, "ORIONCX_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY"))
	setString(&p.OpenAIBaseURL, "ORIONCX_OPENAI_BASE_URL", "https://api.openai.com/v1")
	setString(&p.ChatModel, "ORIONCX_CHAT_MODEL", DefaultChatModel)
	setString(&p.EmbeddingModel, "ORIONCX_EMBEDDING_MODEL", "text-embedding-3-small")
	setString(&p.TranscriptionModel, "ORIONCX_TRANSCRIPTION_MODEL", "whisper-1")

	if p.MaxAttempts == 0 {
		if n, err := strconv.Atoi(os.Getenv("ORIONCX_MAX_ATTEMPTS")); err == nil {
			p.MaxAttempts = n
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and rejects invalid configuration.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Port == 0 {
		p.Port = DefaultPort
	}

	switch p.Driver {
	case "":
		p.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.ContextWindow == 0 {
		p.ContextWindow = DefaultContextWindow
	}
	if p.MaxOutTokens == 0 {
		p.MaxOutTokens = DefaultMaxOutTokens
	}
	if p.ContextWindow < 0 || p.MaxOutTokens < 0 || p.PromptBudget() < 0 {
		return errors.Errorf("invalid token budget: context window %d must be at least max output tokens %d", p.ContextWindow, p.MaxOutTokens)
	}

	if p.DefaultLanguage == "" {
		p.DefaultLanguage = DefaultLanguage
	}
	p.DefaultLanguage = strings.ToLower(p.DefaultLanguage)
	if len(p.DefaultLanguage) != 2 || strings.Trim(p.DefaultLanguage, "abcdefghijklmnopqrstuvwxyz") != "" {
		return errors.Errorf("invalid default language %q: expected a two-letter code", p.DefaultLanguage)
	}

	if p.RetrievalTopK <= 0 {
		p.RetrievalTopK = DefaultRetrievalTopK
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.ChatModel == "" {
		p.ChatModel = DefaultChatModel
	}

	switch strings.ToLower(p.ExtractionMode) {
	case "", "json":
		p.ExtractionMode = "json"
	case "raw":
		p.ExtractionMode = "raw"
	default:
		return errors.Errorf("unknown extraction mode %q: expected 'json' or 'raw'", p.ExtractionMode)
	}

	if p.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}
	if p.RateLimit > 0 && p.RateBurst <= 0 {
		p.RateBurst = int(p.RateLimit) * 2
		if p.RateBurst < 1 {
			p.RateBurst = 1
		}
	}

	if p.Driver == "postgres" {
		if p.DSN == "" {
			return errors.New("postgres driver requires a DSN")
		}
		return nil
	}

	if p.Data == "" {
		p.Data = "."
	}
	if p.Mode == "prod" {
		if err := os.MkdirAll(p.Data, 0o770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir
	if p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("orioncx_%s.db", p.Mode))
	}
	return nil
}
