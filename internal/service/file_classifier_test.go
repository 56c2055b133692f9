package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/model"
)

func writeContract(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MaliciousFile), []byte(body), 0o644))
}

func TestResolveTarget(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "reentrancy", "reentrancy_001")
	writeContract(t, dir, "contract A {}")

	target, err := ResolveTarget(dir, "", "")
	require.NoError(t, err)
	require.Equal(t, "reentrancy_001", target.ContractID)
	require.Equal(t, filepath.Join(dir, MaliciousFile), target.Path)
	require.Equal(t, dir, target.OutDir)

	file := filepath.Join(root, "vault.sol")
	require.NoError(t, os.WriteFile(file, []byte("contract V {}"), 0o644))
	target, err = ResolveTarget(file, "", "")
	require.NoError(t, err)
	require.Equal(t, "vault", target.ContractID)
	require.Equal(t, root, target.OutDir)

	_, err = ResolveTarget(filepath.Join(root, "reentrancy"), "", "")
	require.Error(t, err)
}

// echoCompleter answers with the contract id found in the prompt.
func echoCompleter(failFor string) *fakeCompleter {
	return &fakeCompleter{fallback: func(req *ai.CompletionRequest) (string, error) {
		idx := strings.Index(req.Prompt, "Contract id: ")
		id := strings.SplitN(req.Prompt[idx+len("Contract id: "):], "\n", 2)[0]
		if id == failFor {
			return "", errors.New("upstream down")
		}
		return `{"id": "` + id + `", "solidity": "A", "attacks": null}`, nil
	}}
}

func TestClassifyFileWritesOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "arithmetic", "arithmetic_002")
	writeContract(t, dir, "contract A {}")
	svc := NewClassifyService(echoCompleter(""), &fakeRetriever{}, newTemplates(t))
	target, err := ResolveTarget(dir, "", "")
	require.NoError(t, err)

	out, path, err := NewFileClassifier(svc).ClassifyFile(context.Background(), target, model.ModeRAG, "", 0)
	require.NoError(t, err)
	require.True(t, out.Valid)
	require.Equal(t, filepath.Join(dir, "classify_rag.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got model.ClassificationResult
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "arithmetic_002", got.ID)
}

func TestClassifyAllCollectsFailures(t *testing.T) {
	root := t.TempDir()
	writeContract(t, filepath.Join(root, "arithmetic", "arithmetic_000"), "contract A {}")
	writeContract(t, filepath.Join(root, "reentrancy", "reentrancy_000"), "contract B {}")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "reentrancy", "empty"), 0o755))

	svc := NewClassifyService(echoCompleter("reentrancy_000"), &fakeRetriever{}, newTemplates(t))
	batch := NewBatchClassifier(NewFileClassifier(svc), 2)
	report, err := batch.ClassifyAll(context.Background(), root, []model.Mode{model.ModeRaw, model.ModeRAG}, "", 0)
	require.NoError(t, err)
	require.Equal(t, 4, report.Total)
	require.Equal(t, 2, report.Succeeded)
	require.Len(t, report.Failures, 2)
	require.Equal(t, "reentrancy_000", report.Failures[0].ContractID)
	require.Equal(t, model.ModeRAG, report.Failures[0].Mode)

	_, err = os.Stat(filepath.Join(root, "arithmetic", "arithmetic_000", "classify_raw.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "arithmetic", "arithmetic_000", "classify_rag.json"))
	require.NoError(t, err)
}
