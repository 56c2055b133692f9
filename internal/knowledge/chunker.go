package knowledge

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/solidguard/internal/model"
)

const DefaultExplanationMaxChars = 1600

var (
	attackTypeRegex = regexp.MustCompile(`AttackType:\s*([a-zA-Z0-9_]+)`)
	vulnNameRegex   = regexp.MustCompile(`Vulnerability Name:\s*([a-zA-Z0-9_]+)`)
	samplesRegex    = regexp.MustCompile(`(?m)^Samples\s*=*.*$`)
	exampleRegex    = regexp.MustCompile(`(?m)^Example:\s.*$`)
)

// ParseAttackType reads the attack type from a document header. An inline
// "AttackType:" tag wins over "Vulnerability Name:".
func ParseAttackType(text, fallback string) string {
	if m := attackTypeRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := vulnNameRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return fallback
}

// SplitSections splits a document at its first Samples heading. Documents
// without one are all explanation.
func SplitSections(text string) (explanation string, samples string) {
	loc := samplesRegex.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(text[:loc[0]]), strings.TrimSpace(text[loc[0]:])
}

// ChunkExplanation packs paragraphs greedily into chunks of at most maxChars
// characters. A paragraph longer than maxChars becomes its own chunk.
func ChunkExplanation(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultExplanationMaxChars
	}
	var (
		chunks     []string
		current    strings.Builder
		currentLen int
	)
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pLen := utf8.RuneCountInString(p)
		if currentLen > 0 && currentLen+pLen+2 > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(p)
		currentLen += pLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// SplitExamples cuts a samples section into one chunk per Example heading.
// Text ahead of the first heading is not kept.
func SplitExamples(samples string) []string {
	if samples == "" {
		return nil
	}
	locs := exampleRegex.FindAllStringIndex(samples, -1)
	if len(locs) == 0 {
		return []string{strings.TrimSpace(samples)}
	}
	chunks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(samples)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if chunk := strings.TrimSpace(samples[loc[0]:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

type section struct {
	kind model.SectionType
	text string
}

func chunkDocument(text string, maxChars int) []section {
	explanation, samples := SplitSections(text)
	out := make([]section, 0)
	for _, c := range ChunkExplanation(explanation, maxChars) {
		out = append(out, section{kind: model.SectionExplanation, text: c})
	}
	for _, c := range SplitExamples(samples) {
		out = append(out, section{kind: model.SectionExample, text: c})
	}
	return out
}
