package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nikhilbhutani/docrag/pkg/chunker"
)

// EnvConfigPath names the optional YAML file applied before env overrides.
const EnvConfigPath = "DOCRAG_CONFIG"

const GroqBaseURL = "https://api.groq.com/openai/v1"

var LLMProviders = []string{"openai", "groq", "anthropic", "ollama"}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	MaxSessions    int           `yaml:"max_sessions"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst      int           `yaml:"rate_burst"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

// RedisConfig with an empty Addr runs without a cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig with neither a JWT secret nor API keys leaves the API open.
type AuthConfig struct {
	JWTSecret    string   `yaml:"jwt_secret"`
	APIKeys      []string `yaml:"api_keys"`
	APIKeyHeader string   `yaml:"api_key_header"`
}

func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || len(a.APIKeys) > 0
}

type LLMConfig struct {
	OpenAIKey        string        `yaml:"openai_key"`
	GroqKey          string        `yaml:"groq_key"`
	GroqBaseURL      string        `yaml:"groq_base_url"`
	AnthropicKey     string        `yaml:"anthropic_key"`
	OllamaURL        string        `yaml:"ollama_url"`
	DefaultProvider  string        `yaml:"default_provider"`
	DefaultModel     string        `yaml:"default_model"`
	FallbackProvider string        `yaml:"fallback_provider"`
	FallbackModel    string        `yaml:"fallback_model"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
}

type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Dimension   int           `yaml:"dimension"`
	Timeout     time.Duration `yaml:"timeout"`
	BatchSize   int           `yaml:"batch_size"`
	Concurrency int           `yaml:"concurrency"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type RAGConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	OverlapTokens  int `yaml:"overlap_tokens"`
	TopK           int `yaml:"top_k"`
}

func (r RAGConfig) ChunkOptions() chunker.ChunkOptions {
	return chunker.ChunkOptions{ChunkSize: r.MaxChunkTokens, ChunkOverlap: r.OverlapTokens}
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxUploadBytes: 32 << 20,
			MaxSessions:    64,
			RateLimit:      5,
			RateBurst:      10,
			CORSOrigins:    []string{"*"},
		},
		Auth: AuthConfig{
			APIKeyHeader: "X-API-Key",
		},
		LLM: LLMConfig{
			GroqBaseURL:     GroqBaseURL,
			OllamaURL:       "http://localhost:11434",
			DefaultProvider: "openai",
			Temperature:     0.2,
			MaxTokens:       1024,
			Timeout:         60 * time.Second,
			MaxRetries:      1,
		},
		Embedding: EmbeddingConfig{
			Dimension:   384,
			Timeout:     30 * time.Second,
			BatchSize:   100,
			Concurrency: 4,
			CacheTTL:    24 * time.Hour,
		},
		RAG: RAGConfig{
			MaxChunkTokens: 500,
			OverlapTokens:  50,
			TopK:           5,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $DOCRAG_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
		if cfg.LLM.OpenAIKey != "" {
			cfg.Embedding.Provider = "openai"
		}
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	e := func(got error) {
		err = errors.Join(err, got)
	}

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.APIKeyHeader = getEnv("API_KEY_HEADER", c.Auth.APIKeyHeader)
	if keys := getEnv("API_KEYS", ""); keys != "" {
		c.Auth.APIKeys = splitList(keys)
	}

	c.LLM.OpenAIKey = getEnv("OPENAI_API_KEY", c.LLM.OpenAIKey)
	c.LLM.GroqKey = getEnv("GROQ_API_KEY", c.LLM.GroqKey)
	c.LLM.GroqBaseURL = getEnv("GROQ_BASE_URL", c.LLM.GroqBaseURL)
	c.LLM.AnthropicKey = getEnv("ANTHROPIC_API_KEY", c.LLM.AnthropicKey)
	c.LLM.OllamaURL = getEnv("OLLAMA_URL", c.LLM.OllamaURL)
	c.LLM.DefaultProvider = getEnv("LLM_DEFAULT_PROVIDER", c.LLM.DefaultProvider)
	c.LLM.DefaultModel = getEnv("LLM_DEFAULT_MODEL", c.LLM.DefaultModel)
	c.LLM.FallbackProvider = getEnv("LLM_FALLBACK_PROVIDER", c.LLM.FallbackProvider)
	c.LLM.FallbackModel = getEnv("LLM_FALLBACK_MODEL", c.LLM.FallbackModel)

	c.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)

	var v error
	c.Server.Port, v = getEnvInt("SERVER_PORT", c.Server.Port)
	e(v)
	c.Server.RateLimit, v = getEnvFloat("RATE_LIMIT_RPS", c.Server.RateLimit)
	e(v)
	c.Redis.DB, v = getEnvInt("REDIS_DB", c.Redis.DB)
	e(v)
	c.LLM.Temperature, v = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	e(v)
	c.LLM.MaxTokens, v = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	e(v)
	c.LLM.Timeout, v = getEnvDuration("LLM_TIMEOUT", c.LLM.Timeout)
	e(v)
	c.LLM.MaxRetries, v = getEnvInt("LLM_MAX_RETRIES", c.LLM.MaxRetries)
	e(v)
	c.Embedding.Dimension, v = getEnvInt("EMBEDDING_DIMENSION", c.Embedding.Dimension)
	e(v)
	c.Embedding.Timeout, v = getEnvDuration("EMBEDDING_TIMEOUT", c.Embedding.Timeout)
	e(v)
	c.Embedding.CacheTTL, v = getEnvDuration("EMBEDDING_CACHE_TTL", c.Embedding.CacheTTL)
	e(v)
	c.RAG.MaxChunkTokens, v = getEnvInt("RAG_MAX_CHUNK_TOKENS", c.RAG.MaxChunkTokens)
	e(v)
	c.RAG.OverlapTokens, v = getEnvInt("RAG_OVERLAP_TOKENS", c.RAG.OverlapTokens)
	e(v)
	c.RAG.TopK, v = getEnvInt("RAG_TOP_K", c.RAG.TopK)
	e(v)

	return err
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ModelFor returns the configured model for provider, or that provider's
// default.
func (c LLMConfig) ModelFor(provider string) string {
	switch {
	case provider == c.DefaultProvider && c.DefaultModel != "":
		return c.DefaultModel
	case provider == c.FallbackProvider && c.FallbackModel != "":
		return c.FallbackModel
	}
	switch provider {
	case "groq":
		return "llama-3.3-70b-versatile"
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "ollama":
		return "llama3"
	default:
		return "gpt-4o-mini"
	}
}

func (c *Config) Validate() error {
	var problems []string

	if err := c.RAG.ChunkOptions().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.RAG.TopK <= 0 {
		problems = append(problems, fmt.Sprintf("top_k must be positive, got %d", c.RAG.TopK))
	}

	if !slices.Contains(LLMProviders, c.LLM.DefaultProvider) {
		problems = append(problems, fmt.Sprintf("unknown LLM provider %q", c.LLM.DefaultProvider))
	} else if !c.LLM.configured(c.LLM.DefaultProvider) {
		problems = append(problems, fmt.Sprintf("LLM provider %q has no credentials", c.LLM.DefaultProvider))
	}
	if p := c.LLM.FallbackProvider; p != "" && !slices.Contains(LLMProviders, p) {
		problems = append(problems, fmt.Sprintf("unknown fallback LLM provider %q", p))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("temperature must be within [0,2], got %g", c.LLM.Temperature))
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 1 {
		problems = append(problems, fmt.Sprintf("max retries must be 0 or 1, got %d", c.LLM.MaxRetries))
	}

	switch c.Embedding.Provider {
	case "hash":
		if c.Embedding.Dimension <= 0 {
			problems = append(problems, "hash embedding dimension must be positive")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			problems = append(problems, "openai embeddings need OPENAI_API_KEY")
		}
	case "ollama":
	default:
		problems = append(problems, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c LLMConfig) configured(provider string) bool {
	switch provider {
	case "openai":
		return c.OpenAIKey != ""
	case "groq":
		return c.GroqKey != ""
	case "anthropic":
		return c.AnthropicKey != ""
	case "ollama":
		return c.OllamaURL != ""
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
