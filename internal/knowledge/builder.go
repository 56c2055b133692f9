package knowledge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/model"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 16
	unknownCategory  = "unknown"
)

type BuilderConfig struct {
	ExplanationMaxChars int
	BatchSize           int
}

type BuildStats struct {
	Documents  int            `json:"documents"`
	Skipped    int            `json:"skipped"`
	Chunks     int            `json:"chunks"`
	Dimension  int            `json:"dimension"`
	Categories map[string]int `json:"categories"`
}

// Builder turns a tree of reference documents into a JSON lines knowledge
// store, one embedded chunk per line.
type Builder struct {
	embedder ai.IEmbedder
	cfg      BuilderConfig
}

func NewBuilder(embedder ai.IEmbedder, cfg BuilderConfig) *Builder {
	if cfg.ExplanationMaxChars <= 0 {
		cfg.ExplanationMaxChars = DefaultExplanationMaxChars
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Builder{embedder: embedder, cfg: cfg}
}

type sourceDoc struct {
	path     string
	category string
}

// Build embeds every .txt document under root and writes the records to w.
// Records are flushed batch by batch, so a failed run leaves a usable prefix.
func (b *Builder) Build(ctx context.Context, root string, w io.Writer) (*BuildStats, error) {
	docs, err := listDocuments(root)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	stats := &BuildStats{Categories: make(map[string]int)}
	seen := make(map[string]struct{})
	logger := logutil.GetLogger(ctx)
	for _, doc := range docs {
		raw, err := os.ReadFile(doc.path)
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", doc.path, err)
		}
		text := strings.TrimSpace(strings.ReplaceAll(string(raw), "\r\n", "\n"))
		if text == "" {
			stats.Skipped++
			continue
		}
		sections := chunkDocument(text, b.cfg.ExplanationMaxChars)
		if len(sections) == 0 {
			stats.Skipped++
			continue
		}
		attackType := ParseAttackType(text, doc.category)
		filename := filepath.Base(doc.path)
		for start := 0; start < len(sections); start += b.cfg.BatchSize {
			end := start + b.cfg.BatchSize
			if end > len(sections) {
				end = len(sections)
			}
			batch := sections[start:end]
			texts := make([]string, 0, len(batch))
			for _, s := range batch {
				texts = append(texts, s.text)
			}
			vectors, err := b.embedder.Embed(ctx, texts)
			if err != nil {
				return stats, fmt.Errorf("embed %s: %w", doc.path, err)
			}
			if len(vectors) != len(texts) {
				return stats, fmt.Errorf("embed %s: got %d vectors for %d chunks", doc.path, len(vectors), len(texts))
			}
			for i, s := range batch {
				index := start + i
				rec := model.ChunkRecord{
					ID:          model.ChunkID(doc.category, filename, index),
					Category:    doc.category,
					AttackType:  attackType,
					SourcePath:  filepath.ToSlash(doc.path),
					ChunkIndex:  index,
					SectionType: s.kind,
					Text:        s.text,
					Embedding:   vectors[i],
				}
				if _, ok := seen[rec.ID]; ok {
					return stats, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
				}
				if stats.Dimension == 0 {
					stats.Dimension = len(rec.Embedding)
				}
				if len(rec.Embedding) != stats.Dimension {
					return stats, fmt.Errorf("%w: %s has %d, want %d", ErrDimensionMismatch, rec.ID, len(rec.Embedding), stats.Dimension)
				}
				if err := enc.Encode(&rec); err != nil {
					return stats, err
				}
				seen[rec.ID] = struct{}{}
				stats.Chunks++
				stats.Categories[doc.category]++
			}
			if err := bw.Flush(); err != nil {
				return stats, err
			}
		}
		stats.Documents++
		logger.Info("document processed",
			zap.String("path", doc.path),
			zap.String("category", doc.category),
			zap.String("attack_type", attackType),
			zap.Int("chunks", len(sections)),
		)
	}
	logger.Info("knowledge store built",
		zap.Int("documents", stats.Documents),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
	)
	return stats, nil
}

func listDocuments(root string) ([]sourceDoc, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docs root %s is not a directory", root)
	}
	docs := make([]sourceDoc, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".txt" {
			return nil
		}
		docs = append(docs, sourceDoc{path: path, category: categoryOf(root, path)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].path < docs[j].path })
	return docs, nil
}

func categoryOf(root, path string) string {
	parent := filepath.Dir(path)
	if filepath.Clean(parent) == filepath.Clean(root) {
		return unknownCategory
	}
	return filepath.Base(parent)
}
