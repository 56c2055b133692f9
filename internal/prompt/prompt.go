// Package prompt assembles completion prompts from templates, a line
// numbered contract and retrieved reference chunks.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xxxsen/solidguard/internal/knowledge"
)

const (
	VarContract      = "contract"
	VarContractID    = "contract_id"
	VarRetrievedDocs = "retrieved_docs"
	VarAttackType    = "attack_type"

	NoDocsSentinel = "No RAG documents were retrieved."

	ClassifySystemPrompt = "You are a strict smart-contract vulnerability classifier. Output ONLY JSON."
)

// NumberLines prefixes every line with its 1-based number, "<n>: <line>".
func NumberLines(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.TrimSuffix(src, "\n")
	if src == "" {
		return ""
	}
	lines := strings.Split(src, "\n")
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(": ")
		sb.WriteString(line)
	}
	return sb.String()
}

// RenderDocs formats retrieved chunks as labelled blocks. An empty set
// renders as NoDocsSentinel.
func RenderDocs(hits []knowledge.Hit) string {
	if len(hits) == 0 {
		return NoDocsSentinel
	}
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		blocks = append(blocks, fmt.Sprintf("[DOC %d | id=%s | category=%s | source=%s]\n%s",
			i+1, h.ID, h.Category, h.Source, h.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// Fill replaces every {name} placeholder with vars[name] in one pass, so
// inserted values are never substituted again. Unknown placeholders are
// left as is.
func Fill(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
