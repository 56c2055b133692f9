package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/parser"
	appErr "github.com/xxxsen/solidguard/internal/pkg/errors"
)

const goodGeneration = "{\"id\": \"x\", \"attack_type\": \"reentrancy\"}\n" +
	"// MALICIOUS CONTRACT\ncontract Bad {}\n// SAFE CONTRACT\ncontract Good {}\n"

func TestGenerateRetriesUntilParsable(t *testing.T) {
	comp := &fakeCompleter{responses: []string{"no json", "{\"id\": 1}\nno marker", goodGeneration}}
	svc := NewGenerateService(comp, newTemplates(t), GenerateConfig{MaxAttempts: 3})

	gen, err := svc.Generate(context.Background(), model.AttackReentrancy, "reentrancy_007", "")
	require.NoError(t, err)
	require.Equal(t, 3, gen.Attempts)
	require.Equal(t, "contract Bad {}", gen.Malicious)
	require.Equal(t, "contract Good {}", gen.Safe)
	require.Len(t, comp.requests, 3)

	req := comp.requests[0]
	require.False(t, req.JSONMode)
	require.InDelta(t, 0.7, *req.Temperature, 1e-6)
	require.Contains(t, req.Prompt, "Attack type: reentrancy")
	require.Contains(t, req.Prompt, "Contract id: reentrancy_007")
}

func TestGenerateExhausted(t *testing.T) {
	comp := &fakeCompleter{fallback: func(_ *ai.CompletionRequest) (string, error) { return "nothing useful", nil }}
	svc := NewGenerateService(comp, newTemplates(t), GenerateConfig{MaxAttempts: 2})
	_, err := svc.Generate(context.Background(), model.AttackArithmetic, "", "")
	require.ErrorIs(t, err, ErrGenerationExhausted)
	require.ErrorIs(t, err, parser.ErrNoJSON)
	require.Len(t, comp.requests, 2)
}

func TestGenerateRejectsUnknownAttack(t *testing.T) {
	svc := NewGenerateService(&fakeCompleter{}, newTemplates(t), GenerateConfig{})
	_, err := svc.Generate(context.Background(), "phishing", "", "")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestGenerateUpstreamErrorIsNotRetried(t *testing.T) {
	boom := errors.New("quota")
	comp := &fakeCompleter{err: boom}
	svc := NewGenerateService(comp, newTemplates(t), GenerateConfig{MaxAttempts: 5})
	_, err := svc.Generate(context.Background(), model.AttackArithmetic, "", "")
	require.ErrorIs(t, err, boom)
	require.Len(t, comp.requests, 1)
}

func TestGenerateDatasetRoundRobin(t *testing.T) {
	out := t.TempDir()
	for _, name := range []string{"access_control_000", "access_control_004"} {
		require.NoError(t, os.MkdirAll(filepath.Join(out, "access_control", name), 0o755))
	}
	comp := &fakeCompleter{fallback: func(_ *ai.CompletionRequest) (string, error) { return goodGeneration, nil }}
	svc := NewGenerateService(comp, newTemplates(t), GenerateConfig{})

	gens, err := svc.GenerateDataset(context.Background(), out, 3, "gpt-4.1")
	require.NoError(t, err)
	require.Len(t, gens, 3)
	require.Equal(t, "arithmetic_000", gens[0].ContractID)
	require.Equal(t, "denial_of_service_000", gens[1].ContractID)
	require.Equal(t, "front_running_000", gens[2].ContractID)

	data, err := os.ReadFile(filepath.Join(out, "arithmetic", "arithmetic_000", MaliciousFile))
	require.NoError(t, err)
	require.Equal(t, "contract Bad {}", string(data))
	data, err = os.ReadFile(filepath.Join(out, "arithmetic", "arithmetic_000", SafeFile))
	require.NoError(t, err)
	require.Equal(t, "contract Good {}", string(data))

	idx, err := nextLocalIndex(out, model.AttackAccessControl)
	require.NoError(t, err)
	require.Equal(t, 5, idx)
}

func TestGenerateDatasetRequiresSafeVariant(t *testing.T) {
	onlyMalicious := "{\"id\": \"x\"}\n// MALICIOUS CONTRACT\ncontract Bad {}"
	comp := &fakeCompleter{responses: []string{onlyMalicious, goodGeneration}}
	svc := NewGenerateService(comp, newTemplates(t), GenerateConfig{})
	gens, err := svc.GenerateDataset(context.Background(), t.TempDir(), 1, "")
	require.NoError(t, err)
	require.Equal(t, 2, gens[0].Attempts)
}
