package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port             int              `json:"port"`
	LogConfig        logger.LogConfig `json:"log_config"`
	CORSOrigins      []string         `json:"cors_origins"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
	Auth             AuthConfig       `json:"auth"`
	Knowledge        KnowledgeConfig  `json:"knowledge"`
	Embedding        EmbeddingConfig  `json:"embedding"`
	Completion       CompletionConfig `json:"completion"`
	Resilience       ResilienceConfig `json:"resilience"`
	Prompts          PromptConfig     `json:"prompts"`
	Generate         GenerateConfig   `json:"generate"`
	Database         DatabaseConfig   `json:"database"`
}

// AuthConfig enables bearer token auth on the API when JWTSecret is set.
type AuthConfig struct {
	JWTSecret    string `json:"jwt_secret"`
	JWTTTLHours  int    `json:"jwt_ttl_hours"`
	PasswordHash string `json:"password_hash"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type KnowledgeConfig struct {
	FileStore           FileStoreConfig `json:"file_store"`
	Key                 string          `json:"key"`
	DocsRoot            string          `json:"docs_root"`
	ExplanationMaxChars int             `json:"explanation_max_chars"`
	BatchSize           int             `json:"batch_size"`
	DefaultK            int             `json:"default_k"`
	RebuildCron         string          `json:"rebuild_cron"`
}

type EmbeddingConfig struct {
	Provider        string      `json:"provider"`
	Model           string      `json:"model"`
	Data            interface{} `json:"data"`
	CacheSize       int         `json:"cache_size"`
	CacheTTLSeconds int         `json:"cache_ttl_seconds"`
}

type CompletionProviderConfig struct {
	Name   string      `json:"name"`
	Models []string    `json:"models"`
	Data   interface{} `json:"data"`
}

type CompletionConfig struct {
	DefaultModel string                     `json:"default_model"`
	Providers    []CompletionProviderConfig `json:"providers"`
}

// ResilienceConfig guards upstream model calls. Zero values disable a guard.
type ResilienceConfig struct {
	RequestsPerMinute  int `json:"requests_per_minute"`
	Burst              int `json:"burst"`
	BreakerFailures    int `json:"breaker_failures"`
	BreakerOpenSeconds int `json:"breaker_open_seconds"`
}

func (c ResilienceConfig) Enabled() bool {
	return c.RequestsPerMinute > 0 || c.BreakerFailures > 0
}

// PromptConfig holds optional template override paths.
type PromptConfig struct {
	ClassifyRaw string `json:"classify_raw"`
	ClassifyRAG string `json:"classify_rag"`
	Generate    string `json:"generate"`
}

type GenerateConfig struct {
	MaxAttempts int     `json:"max_attempts"`
	Temperature float32 `json:"temperature"`
	OutputDir   string  `json:"output_dir"`
}

// DatabaseConfig enables the classification archive and the persistent
// embedding cache when DSN or Host is set.
type DatabaseConfig struct {
	DSN                string `json:"dsn"`
	Host               string `json:"host"`
	Port               int    `json:"port"`
	User               string `json:"user"`
	Password           string `json:"password"`
	DBName             string `json:"dbname"`
	SSLMode            string `json:"sslmode"`
	EmbeddingCacheDays int    `json:"embedding_cache_days"`
	CleanupCron        string `json:"cleanup_cron"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// LoadEnv reads a dotenv file into the process environment. A missing file is
// not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads a JSON or YAML (by extension) config file, fills provider keys
// from the environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := decodeYAML(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeYAML goes through JSON so the json tags stay the single source of
// field names.
func decodeYAML(raw []byte, dst *Config) error {
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	if generic == nil {
		return nil
	}
	data, err := json.Marshal(generic)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Auth.JWTTTLHours == 0 {
		cfg.Auth.JWTTTLHours = 72
	}
	k := &cfg.Knowledge
	if k.FileStore.Type == "" {
		k.FileStore.Type = "local"
	}
	if k.FileStore.Data == nil && k.FileStore.Type == "local" {
		k.FileStore.Data = map[string]interface{}{"dir": "data"}
	}
	if k.Key == "" {
		k.Key = "knowledge_store.jsonl"
	}
	if k.DocsRoot == "" {
		k.DocsRoot = "RAG_docs"
	}
	if k.ExplanationMaxChars == 0 {
		k.ExplanationMaxChars = 1600
	}
	if k.BatchSize == 0 {
		k.BatchSize = 16
	}
	if k.DefaultK == 0 {
		k.DefaultK = 5
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-large"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Embedding.CacheTTLSeconds == 0 {
		cfg.Embedding.CacheTTLSeconds = 3600
	}
	if len(cfg.Completion.Providers) == 0 {
		cfg.Completion.Providers = []CompletionProviderConfig{{
			Name:   "openai",
			Models: []string{"gpt-4.1", "gpt-4.1-mini", "gpt-5.1"},
		}}
	}
	if cfg.Completion.DefaultModel == "" {
		for _, p := range cfg.Completion.Providers {
			for _, m := range p.Models {
				if cfg.Completion.DefaultModel == "" || m == "gpt-5.1" {
					cfg.Completion.DefaultModel = m
				}
			}
		}
	}
	if cfg.Generate.MaxAttempts == 0 {
		cfg.Generate.MaxAttempts = 3
	}
	if cfg.Generate.Temperature == 0 {
		cfg.Generate.Temperature = 0.7
	}
	if cfg.Generate.OutputDir == "" {
		cfg.Generate.OutputDir = filepath.Join("data", "synthetic")
	}
	if cfg.Database.EmbeddingCacheDays == 0 {
		cfg.Database.EmbeddingCacheDays = 30
	}
	if cfg.Database.CleanupCron == "" {
		cfg.Database.CleanupCron = "30 3 * * *"
	}
}

func applyEnv(cfg *Config) {
	cfg.Embedding.Data = withEnvKey(cfg.Embedding.Provider, cfg.Embedding.Data)
	for i := range cfg.Completion.Providers {
		p := &cfg.Completion.Providers[i]
		p.Data = withEnvKey(p.Name, p.Data)
	}
}

func withEnvKey(provider string, data interface{}) interface{} {
	envName, ok := providerKeyEnv[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return data
	}
	m, ok := data.(map[string]interface{})
	if data == nil {
		m, ok = map[string]interface{}{}, true
	}
	if !ok {
		return data
	}
	if key, _ := m["api_key"].(string); strings.TrimSpace(key) == "" {
		if v := os.Getenv(envName); v != "" {
			m["api_key"] = v
		}
	}
	return m
}

func validate(cfg *Config) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port out of range: %d", cfg.Port)
	}
	if cfg.Knowledge.ExplanationMaxChars < 0 || cfg.Knowledge.BatchSize < 0 || cfg.Knowledge.DefaultK < 0 {
		return fmt.Errorf("knowledge sizes must not be negative")
	}
	served := false
	for i, p := range cfg.Completion.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("completion.providers[%d].name is required", i)
		}
		if len(p.Models) == 0 {
			return fmt.Errorf("completion.providers[%d].models is required", i)
		}
		for _, m := range p.Models {
			if m == cfg.Completion.DefaultModel {
				served = true
			}
		}
	}
	if !served {
		return fmt.Errorf("completion.default_model %q is not served by any provider", cfg.Completion.DefaultModel)
	}
	if cfg.Auth.PasswordHash != "" && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.password_hash is set")
	}
	return nil
}
