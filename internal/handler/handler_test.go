package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/config"
	"github.com/xxxsen/solidguard/internal/knowledge"
	"github.com/xxxsen/solidguard/internal/pkg/errcode"
	"github.com/xxxsen/solidguard/internal/pkg/password"
	"github.com/xxxsen/solidguard/internal/prompt"
	"github.com/xxxsen/solidguard/internal/service"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, _ *ai.CompletionRequest) (string, error) {
	return s.reply, s.err
}

func (s *stubCompleter) Supports(model string) bool {
	return model == "gpt-4.1" || model == "gpt-5.1"
}

func (s *stubCompleter) DefaultModel() string { return "gpt-5.1" }

func (s *stubCompleter) Models() []string { return []string{"gpt-4.1", "gpt-5.1"} }

type stubRetriever struct{}

func (stubRetriever) Retrieve(_ context.Context, _ string, _ int) ([]knowledge.Hit, error) {
	return []knowledge.Hit{{ID: "reentrancy::a.txt::chunk_0"}}, nil
}

type stubStore struct{}

func (stubStore) Loaded() bool               { return true }
func (stubStore) Len() int                   { return 3 }
func (stubStore) Dimension() int             { return 8 }
func (stubStore) Categories() map[string]int { return map[string]int{"reentrancy": 3} }

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, completer *stubCompleter, secret []byte, passwordHash string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	templates, err := prompt.LoadTemplates(config.PromptConfig{})
	require.NoError(t, err)
	classify := service.NewClassifyService(completer, stubRetriever{}, templates)
	generate := service.NewGenerateService(completer, templates, service.GenerateConfig{MaxAttempts: 2})
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), RouterDeps{
		Classify:  NewClassifyHandler(classify),
		Generate:  NewGenerateHandler(generate),
		Health:    NewHealthHandler(stubStore{}, completer),
		Auth:      NewAuthHandler(service.NewAuthService(passwordHash, secret, time.Hour)),
		JWTSecret: secret,
	})
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}, header map[string]string) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestClassifyRAG(t *testing.T) {
	completer := &stubCompleter{reply: `{"id":"c1","solidity":"x","attacks":[{"type":"reentrancy","severity":"high","lines":[4],"description":"d","refs":["reentrancy::a.txt::chunk_0"]}]}`}
	r := newTestRouter(t, completer, nil, "")
	env := do(t, r, http.MethodPost, "/api/v1/classify", gin.H{"contract_text": "contract A {}", "contract_id": "c1", "mode": "rag"}, nil)
	require.Equal(t, 0, env.Code)
	var out service.ClassifyOutcome
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.True(t, out.Valid)
	require.Equal(t, "gpt-5.1", out.Model)
	require.Equal(t, []string{"reentrancy::a.txt::chunk_0"}, out.Result.Attacks[0].Refs)
}

func TestClassifyDefaultsToRaw(t *testing.T) {
	completer := &stubCompleter{reply: `{"id":"c1","solidity":"x","attacks":[]}`}
	r := newTestRouter(t, completer, nil, "")
	env := do(t, r, http.MethodPost, "/api/v1/classify", gin.H{"contract_text": "contract A {}", "contract_id": "c1"}, nil)
	require.Equal(t, 0, env.Code)
	require.Contains(t, string(env.Data), `"mode":"raw"`)
	require.Contains(t, string(env.Data), `"attacks":null`)
}

func TestClassifyErrors(t *testing.T) {
	cases := []struct {
		name      string
		completer *stubCompleter
		body      gin.H
		code      int
	}{
		{"empty contract", &stubCompleter{}, gin.H{"contract_text": "  "}, errcode.ErrInvalid},
		{"unknown model", &stubCompleter{}, gin.H{"contract_text": "a", "model": "gpt-9"}, errcode.ErrInvalid},
		{"bad mode", &stubCompleter{}, gin.H{"contract_text": "a", "mode": "hybrid"}, errcode.ErrInvalid},
		{"upstream", &stubCompleter{err: errors.New("boom")}, gin.H{"contract_text": "a"}, errcode.ErrUpstream},
		{"unparsable", &stubCompleter{reply: "no json here"}, gin.H{"contract_text": "a"}, errcode.ErrParse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(t, tc.completer, nil, "")
			env := do(t, r, http.MethodPost, "/api/v1/classify", tc.body, nil)
			require.Equal(t, tc.code, env.Code)
		})
	}
}

func TestGenerate(t *testing.T) {
	completer := &stubCompleter{reply: "{\"title\":\"t\"}\n// MALICIOUS CONTRACT\ncontract M {}\n"}
	r := newTestRouter(t, completer, nil, "")
	env := do(t, r, http.MethodPost, "/api/v1/generate", gin.H{"attack_type": "reentrancy"}, nil)
	require.Equal(t, 0, env.Code)
	var out service.GeneratedContract
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Equal(t, "contract M {}", out.Malicious)

	env = do(t, r, http.MethodPost, "/api/v1/generate", gin.H{"attack_type": "flash_loan"}, nil)
	require.Equal(t, errcode.ErrInvalid, env.Code)
}

func TestGenerateExhausted(t *testing.T) {
	r := newTestRouter(t, &stubCompleter{reply: "nothing useful"}, nil, "")
	env := do(t, r, http.MethodPost, "/api/v1/generate", gin.H{"attack_type": "arithmetic"}, nil)
	require.Equal(t, errcode.ErrParse, env.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, &stubCompleter{}, nil, "")
	env := do(t, r, http.MethodGet, "/api/v1/health", nil, nil)
	require.Equal(t, 0, env.Code)
	var out struct {
		Store struct {
			Chunks     int            `json:"chunks"`
			Categories map[string]int `json:"categories"`
		} `json:"store"`
		Models []string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Equal(t, 3, out.Store.Chunks)
	require.Equal(t, map[string]int{"reentrancy": 3}, out.Store.Categories)
	require.Equal(t, []string{"gpt-4.1", "gpt-5.1"}, out.Models)
}

func TestClassificationWithoutArchive(t *testing.T) {
	r := newTestRouter(t, &stubCompleter{}, nil, "")
	env := do(t, r, http.MethodGet, "/api/v1/classifications/abc", nil, nil)
	require.Equal(t, errcode.ErrNotFound, env.Code)
}

func TestTokenFlow(t *testing.T) {
	hash, err := password.Hash("pw")
	require.NoError(t, err)
	completer := &stubCompleter{reply: `{"id":"c1","solidity":"x","attacks":null}`}
	r := newTestRouter(t, completer, []byte("secret"), hash)

	env := do(t, r, http.MethodPost, "/api/v1/classify", gin.H{"contract_text": "a", "contract_id": "c1"}, nil)
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/auth/token", gin.H{"password": "nope"}, nil)
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/auth/token", gin.H{"password": "pw"}, nil)
	require.Equal(t, 0, env.Code)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.Token)

	env = do(t, r, http.MethodPost, "/api/v1/classify", gin.H{"contract_text": "a", "contract_id": "c1"},
		map[string]string{"Authorization": "Bearer " + tok.Token})
	require.Equal(t, 0, env.Code)
}
