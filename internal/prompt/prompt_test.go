package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/solidguard/internal/config"
	"github.com/xxxsen/solidguard/internal/knowledge"
	"github.com/xxxsen/solidguard/internal/model"
)

func TestNumberLines(t *testing.T) {
	require.Equal(t, "1: pragma solidity ^0.8.0;\n2: \n3: contract A {}", NumberLines("pragma solidity ^0.8.0;\r\n\r\ncontract A {}\n"))
	require.Equal(t, "", NumberLines(""))
	require.Equal(t, "1: x", NumberLines("x"))
}

func TestRenderDocs(t *testing.T) {
	require.Equal(t, NoDocsSentinel, RenderDocs(nil))
	out := RenderDocs([]knowledge.Hit{
		{ID: "a::x.txt::chunk_0", Category: "a", Source: "docs/a/x.txt", Text: "one"},
		{ID: "b::y.txt::chunk_3", Category: "b", Source: "docs/b/y.txt", Text: "two"},
	})
	require.Equal(t, "[DOC 1 | id=a::x.txt::chunk_0 | category=a | source=docs/a/x.txt]\none\n\n"+
		"[DOC 2 | id=b::y.txt::chunk_3 | category=b | source=docs/b/y.txt]\ntwo", out)
}

func TestFillIsSinglePass(t *testing.T) {
	tpl := "id={contract_id}\n{contract}\n{retrieved_docs}\n{unknown}"
	out := Fill(tpl, map[string]string{
		VarContractID:    "c1",
		VarContract:      "1: string s = \"{contract_id}\";",
		VarRetrievedDocs: "docs mention {contract}",
	})
	require.Equal(t, "id=c1\n1: string s = \"{contract_id}\";\ndocs mention {contract}\n{unknown}", out)
}

func TestFillRepeatedPlaceholder(t *testing.T) {
	require.Equal(t, "x and x", Fill("{contract_id} and {contract_id}", map[string]string{VarContractID: "x"}))
}

func TestLoadTemplatesDefaults(t *testing.T) {
	tpl, err := LoadTemplates(config.PromptConfig{})
	require.NoError(t, err)
	require.Contains(t, tpl.Classify(model.ModeRaw), "{contract}")
	require.NotContains(t, tpl.Classify(model.ModeRaw), "{retrieved_docs}")
	require.Contains(t, tpl.Classify(model.ModeRAG), "{retrieved_docs}")
	require.Contains(t, tpl.Generate, "// MALICIOUS CONTRACT")
	require.Contains(t, tpl.Generate, "{attack_type}")
}

func TestLoadTemplatesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.txt")
	require.NoError(t, os.WriteFile(path, []byte("custom {contract}"), 0o644))
	tpl, err := LoadTemplates(config.PromptConfig{ClassifyRaw: path})
	require.NoError(t, err)
	require.Equal(t, "custom {contract}", tpl.ClassifyRaw)
	require.True(t, strings.Contains(tpl.ClassifyRAG, "{retrieved_docs}"))
}

func TestLoadTemplatesMissingOverride(t *testing.T) {
	_, err := LoadTemplates(config.PromptConfig{Generate: filepath.Join(t.TempDir(), "absent.txt")})
	require.Error(t, err)
}
