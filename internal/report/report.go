// Package report renders classification results as markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	rendererhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/xxxsen/solidguard/internal/model"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(rendererhtml.WithHardWraps()),
)

// Markdown renders a findings table. When contract is non-empty each finding
// is followed by the lines it cites, numbered as the classifier saw them.
func Markdown(result *model.ClassificationResult, contract string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Classification report: %s\n\n", escapeInline(result.ID))
	if len(result.Attacks) == 0 {
		b.WriteString("No vulnerabilities reported.\n")
		return b.String()
	}
	b.WriteString("| # | type | severity | lines | description |\n")
	b.WriteString("|---|------|----------|-------|-------------|\n")
	for i, f := range result.Attacks {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, f.Type, f.Severity, joinLines(f.Lines), escapeCell(f.Description))
	}
	source := splitSource(contract)
	for i, f := range result.Attacks {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, f.Type)
		if f.Description != "" {
			b.WriteString(escapeInline(f.Description))
			b.WriteString("\n")
		}
		if snippet := excerpt(source, f.Lines); snippet != "" {
			b.WriteString("\n```solidity\n")
			b.WriteString(snippet)
			b.WriteString("\n```\n")
		}
		if len(f.Refs) > 0 {
			b.WriteString("\nReferences:\n\n")
			for _, ref := range f.Refs {
				fmt.Fprintf(&b, "- `%s`\n", ref)
			}
		}
	}
	return b.String()
}

func HTML(markdown string) (string, error) {
	var out bytes.Buffer
	if err := md.Convert([]byte(markdown), &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func splitSource(contract string) []string {
	if contract == "" {
		return nil
	}
	contract = strings.ReplaceAll(contract, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(contract, "\n"), "\n")
}

// excerpt returns the cited lines in ascending order; out-of-range numbers
// are skipped.
func excerpt(source []string, lines []int) string {
	if len(source) == 0 || len(lines) == 0 {
		return ""
	}
	seen := make(map[int]bool, len(lines))
	var out []string
	for n := 1; n <= len(source); n++ {
		for _, l := range lines {
			if l == n && !seen[n] {
				seen[n] = true
				out = append(out, fmt.Sprintf("%d: %s", n, source[n-1]))
			}
		}
	}
	return strings.Join(out, "\n")
}

func joinLines(lines []int) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%d", l))
	}
	return strings.Join(parts, ", ")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

func escapeInline(s string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(s)
}
