package prompt

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/solidguard/internal/config"
	"github.com/xxxsen/solidguard/internal/model"
)

//go:embed templates/*.txt
var defaultFS embed.FS

type Templates struct {
	ClassifyRaw string
	ClassifyRAG string
	Generate    string
}

// LoadTemplates starts from the built-in templates and replaces any that the
// config points at. A configured path that cannot be read is an error.
func LoadTemplates(cfg config.PromptConfig) (*Templates, error) {
	t := &Templates{}
	items := []struct {
		dst      *string
		builtin  string
		override string
	}{
		{&t.ClassifyRaw, "templates/classify_raw.txt", cfg.ClassifyRaw},
		{&t.ClassifyRAG, "templates/classify_rag.txt", cfg.ClassifyRAG},
		{&t.Generate, "templates/generate_contract.txt", cfg.Generate},
	}
	for _, item := range items {
		var (
			data []byte
			err  error
		)
		if strings.TrimSpace(item.override) != "" {
			data, err = os.ReadFile(item.override)
		} else {
			data, err = defaultFS.ReadFile(item.builtin)
		}
		if err != nil {
			return nil, fmt.Errorf("load prompt template: %w", err)
		}
		*item.dst = string(data)
	}
	return t, nil
}

func (t *Templates) Classify(mode model.Mode) string {
	if mode == model.ModeRAG {
		return t.ClassifyRAG
	}
	return t.ClassifyRaw
}
