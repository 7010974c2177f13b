// Package config reads process configuration from flags, FRIDGE_CHEF_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/fridge-chef/internal/llm"
	"github.com/zombor/fridge-chef/internal/scanning"
	"github.com/zombor/fridge-chef/internal/session"
)

// EnvPrefix is prepended to flag names to form environment variables,
// e.g. FRIDGE_CHEF_PORT
const EnvPrefix = "FRIDGE_CHEF"

// Providers are the supported model backends
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ErrMissingCredential is returned when the selected hosted provider has no API key
var ErrMissingCredential = errors.New("missing API credential")

// Config is the parsed process configuration
type Config struct {
	Port     int
	Provider string

	GeminiKey   string
	GeminiModel string

	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string

	OllamaURL   string
	OllamaModel string

	ExtractTimeout  time.Duration
	GenerateTimeout time.Duration

	MaxImages     int
	MaxImageBytes int
	MaxDimension  int
	MaxPixels     int
	MaxRecipes    int

	SessionTTL time.Duration
	SessionDB  string

	AuthUser string
	AuthPass string

	LogLevel    slog.Level
	ShowVersion bool
}

// LoadDotEnv loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Parse reads args and FRIDGE_CHEF_* variables. On a parse error the returned
// error includes the usage text.
func Parse(args []string) (*Config, error) {
	fs := ff.NewFlagSet("fridge-chef")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		provider        = fs.StringLong("provider", ProviderGemini, "Model backend: 'gemini', 'ollama' or 'openai'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", llm.DefaultGeminiModel, "Google Gemini model name")
		openAIKey       = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openAIURL       = fs.StringLong("openai-url", llm.DefaultOpenAIURL, "OpenAI-compatible API base URL")
		openAIModel     = fs.StringLong("openai-model", llm.DefaultOpenAIModel, "OpenAI model name")
		ollamaURL       = fs.StringLong("ollama-url", llm.DefaultOllamaURL, "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", llm.DefaultOllamaModel, "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		extractTimeout  = fs.DurationLong("extract-timeout", session.DefaultTimeouts.Extract, "Ceiling for one ingredient extraction call")
		generateTimeout = fs.DurationLong("generate-timeout", session.DefaultTimeouts.Generate, "Ceiling for one recipe generation call")
		maxImages       = fs.IntLong("max-images", scanning.DefaultLimits.MaxImages, "Maximum photos per session")
		maxImageBytes   = fs.IntLong("max-image-bytes", scanning.DefaultLimits.MaxBytes, "Photos larger than this are recompressed")
		maxDimension    = fs.IntLong("max-dimension", scanning.DefaultLimits.MaxDimension, "Photos with a longer edge are downscaled")
		maxPixels       = fs.IntLong("max-pixels", scanning.DefaultLimits.MaxPixels, "Photos with more pixels than this are rejected without decoding")
		maxRecipes      = fs.IntLong("max-recipes", 5, "Maximum recipes per generation request")
		sessionTTL      = fs.DurationLong("session-ttl", 2*time.Hour, "Idle sessions are discarded after this long")
		sessionDB       = fs.StringLong("session-db", "", "BoltDB file for live sessions (empty keeps them in memory)")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return nil, fmt.Errorf("%s\n%w", ffhelp.Flags(fs), err)
	}

	cfg := &Config{
		Port:            *port,
		Provider:        strings.ToLower(strings.TrimSpace(*provider)),
		GeminiKey:       *geminiKey,
		GeminiModel:     *geminiModel,
		OpenAIKey:       *openAIKey,
		OpenAIURL:       *openAIURL,
		OpenAIModel:     *openAIModel,
		OllamaURL:       *ollamaURL,
		OllamaModel:     *ollamaModel,
		ExtractTimeout:  *extractTimeout,
		GenerateTimeout: *generateTimeout,
		MaxImages:       *maxImages,
		MaxImageBytes:   *maxImageBytes,
		MaxDimension:    *maxDimension,
		MaxPixels:       *maxPixels,
		MaxRecipes:      *maxRecipes,
		SessionTTL:      *sessionTTL,
		SessionDB:       *sessionDB,
		AuthUser:        *authUser,
		AuthPass:        *authPass,
		ShowVersion:     *showVersion,
	}
	if cfg.ShowVersion {
		return cfg, nil
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(*logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", *logLevel, err)
	}

	// Fall back to the providers' conventional variables
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and that the selected hosted provider has a key
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("%w: set --gemini-key flag or GEMINI_API_KEY environment variable", ErrMissingCredential)
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("%w: set --openai-key flag or OPENAI_API_KEY environment variable", ErrMissingCredential)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("invalid provider %q, valid: gemini, ollama or openai", c.Provider)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxRecipes < 1 {
		return fmt.Errorf("max-recipes must be at least 1, got %d", c.MaxRecipes)
	}
	if c.MaxImages < 1 || c.MaxImageBytes < 1 || c.MaxDimension < 1 || c.MaxPixels < 1 {
		return errors.New("image limits must be positive")
	}
	if c.ExtractTimeout <= 0 || c.GenerateTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session-ttl must be positive")
	}
	return nil
}

// Limits returns the image limits for the normalizer
func (c *Config) Limits() scanning.Limits {
	return scanning.Limits{
		MaxImages:    c.MaxImages,
		MaxBytes:     c.MaxImageBytes,
		MaxDimension: c.MaxDimension,
		MaxPixels:    c.MaxPixels,
	}
}

// Timeouts returns the per-call ceilings for the session manager
func (c *Config) Timeouts() session.Timeouts {
	return session.Timeouts{
		Extract:  c.ExtractTimeout,
		Generate: c.GenerateTimeout,
	}
}
