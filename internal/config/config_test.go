package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg, err := Load(writeFile(t, "config.json", `{"port": 9000}`))
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "local", cfg.Knowledge.FileStore.Type)
	require.Equal(t, "knowledge_store.jsonl", cfg.Knowledge.Key)
	require.Equal(t, 1600, cfg.Knowledge.ExplanationMaxChars)
	require.Equal(t, 16, cfg.Knowledge.BatchSize)
	require.Equal(t, 5, cfg.Knowledge.DefaultK)
	require.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	require.Equal(t, "gpt-5.1", cfg.Completion.DefaultModel)
	require.Equal(t, []string{"gpt-4.1", "gpt-4.1-mini", "gpt-5.1"}, cfg.Completion.Providers[0].Models)
	require.Equal(t, "sk-env", cfg.Completion.Providers[0].Data.(map[string]interface{})["api_key"])
	require.Equal(t, "sk-env", cfg.Embedding.Data.(map[string]interface{})["api_key"])
	require.False(t, cfg.Database.Enabled())
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	cfg, err := Load(writeFile(t, "config.yaml", `
port: 8100
knowledge:
  file_store:
    type: s3
    data:
      endpoint: minio:9000
      bucket: kb
  default_k: 3
completion:
  default_model: claude-sonnet-4-5
  providers:
    - name: claude
      models: [claude-sonnet-4-5]
      data:
        api_key: explicit
    - name: openai
      models: [gpt-4.1]
database:
  dsn: postgres://localhost/solidguard
`))
	require.NoError(t, err)
	require.Equal(t, 8100, cfg.Port)
	require.Equal(t, "s3", cfg.Knowledge.FileStore.Type)
	require.Equal(t, "kb", cfg.Knowledge.FileStore.Data.(map[string]interface{})["bucket"])
	require.Equal(t, 3, cfg.Knowledge.DefaultK)
	require.Equal(t, "explicit", cfg.Completion.Providers[0].Data.(map[string]interface{})["api_key"])
	require.True(t, cfg.Database.Enabled())
}

func TestLoadRejectsUnservedDefaultModel(t *testing.T) {
	_, err := Load(writeFile(t, "config.json", `{"completion": {"default_model": "gpt-9", "providers": [{"name": "openai", "models": ["gpt-4.1"]}]}}`))
	require.Error(t, err)
}

func TestLoadRequiresSecretWithPassword(t *testing.T) {
	_, err := Load(writeFile(t, "config.json", `{"auth": {"password_hash": "$2a$10$abc"}}`))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
	path := writeFile(t, ".env", "GEMINI_API_KEY=from-dotenv\n")
	os.Unsetenv("GEMINI_API_KEY")
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })
	require.NoError(t, LoadEnv(path))
	require.Equal(t, "from-dotenv", os.Getenv("GEMINI_API_KEY"))
}
