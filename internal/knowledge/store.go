package knowledge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/filestore"
	"github.com/xxxsen/solidguard/internal/model"
	"go.uber.org/zap"
)

var (
	ErrNotInitialized    = errors.New("knowledge store not initialized")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrDuplicateID       = errors.New("duplicate chunk id")
)

// Hit is one retrieved chunk with its cosine similarity to the query.
type Hit struct {
	ID          string            `json:"id"`
	Score       float64           `json:"score"`
	Category    string            `json:"category"`
	AttackType  string            `json:"attack_type"`
	Source      string            `json:"source"`
	ChunkIndex  int               `json:"chunk_index"`
	SectionType model.SectionType `json:"section_type"`
	Text        string            `json:"text"`
}

type snapshot struct {
	records []model.ChunkRecord
	// row-major, each row L2-normalised
	matrix []float32
	dim    int
}

// Store answers cosine nearest-neighbour queries over a loaded knowledge
// store. Once loaded it is read-only and safe for concurrent use.
type Store struct {
	files    filestore.Store
	key      string
	embedder ai.IEmbedder

	mu   sync.RWMutex
	snap *snapshot
}

func NewStore(files filestore.Store, key string, embedder ai.IEmbedder) *Store {
	return &Store{files: files, key: key, embedder: embedder}
}

// Load reads the knowledge store file. A missing file is an error, an empty
// one is a valid empty store.
func (s *Store) Load(ctx context.Context) error {
	if s.files == nil {
		return fmt.Errorf("knowledge store file store is not configured")
	}
	rc, err := s.files.Open(ctx, s.key)
	if err != nil {
		return fmt.Errorf("open knowledge store %s: %w", s.key, err)
	}
	defer rc.Close()
	return s.LoadFrom(ctx, rc)
}

func (s *Store) LoadFrom(ctx context.Context, r io.Reader) error {
	snap, err := readSnapshot(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	logutil.GetLogger(ctx).Info("knowledge store loaded",
		zap.String("key", s.key),
		zap.Int("chunks", len(snap.records)),
		zap.Int("dimension", snap.dim),
	)
	return nil
}

func readSnapshot(r io.Reader) (*snapshot, error) {
	snap := &snapshot{}
	seen := make(map[string]struct{})
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if len(line) > 0 {
			lineNo++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				var rec model.ChunkRecord
				if err := json.Unmarshal(trimmed, &rec); err != nil {
					return nil, fmt.Errorf("knowledge store line %d: %w", lineNo, err)
				}
				if _, ok := seen[rec.ID]; ok {
					return nil, fmt.Errorf("%w: %s (line %d)", ErrDuplicateID, rec.ID, lineNo)
				}
				seen[rec.ID] = struct{}{}
				if len(snap.records) == 0 {
					snap.dim = len(rec.Embedding)
				}
				if len(rec.Embedding) != snap.dim {
					return nil, fmt.Errorf("%w: line %d has %d, want %d", ErrDimensionMismatch, lineNo, len(rec.Embedding), snap.dim)
				}
				snap.matrix = append(snap.matrix, normalize(rec.Embedding)...)
				rec.Embedding = nil
				snap.records = append(snap.records, rec)
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	return snap, nil
}

func (s *Store) current() (*snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNotInitialized
	}
	return s.snap, nil
}

// Retrieve returns the k chunks most similar to query, best first. Equal
// scores keep store order.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if k <= 0 || len(snap.records) == 0 {
		return []Hit{}, nil
	}
	vec, err := ai.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != snap.dim {
		return nil, fmt.Errorf("%w: query has %d, store has %d", ErrDimensionMismatch, len(vec), snap.dim)
	}
	q := normalize(vec)
	n := len(snap.records)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = dot(q, snap.matrix[i*snap.dim:(i+1)*snap.dim])
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if k > n {
		k = n
	}
	hits := make([]Hit, 0, k)
	for _, idx := range order[:k] {
		rec := snap.records[idx]
		hits = append(hits, Hit{
			ID:          rec.ID,
			Score:       scores[idx],
			Category:    rec.Category,
			AttackType:  rec.AttackType,
			Source:      rec.SourcePath,
			ChunkIndex:  rec.ChunkIndex,
			SectionType: rec.SectionType,
			Text:        rec.Text,
		})
	}
	return hits, nil
}

func (s *Store) Len() int {
	snap, err := s.current()
	if err != nil {
		return 0
	}
	return len(snap.records)
}

func (s *Store) Dimension() int {
	snap, err := s.current()
	if err != nil {
		return 0
	}
	return snap.dim
}

func (s *Store) Loaded() bool {
	_, err := s.current()
	return err == nil
}

// Categories counts chunks per category.
func (s *Store) Categories() map[string]int {
	out := make(map[string]int)
	snap, err := s.current()
	if err != nil {
		return out
	}
	for _, rec := range snap.records {
		out[rec.Category]++
	}
	return out
}

// normalize returns a unit-length copy of v; a zero vector stays zero.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
