package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/solidguard/internal/model"
)

// ContractTarget is a contract on disk and where its results go.
type ContractTarget struct {
	ContractID string
	Path       string
	OutDir     string
}

// ResolveTarget accepts a .sol file or a directory holding malicious.sol.
// The contract id defaults to the directory name or the file stem, and output
// lands next to the contract unless outDir is set.
func ResolveTarget(target, contractID, outDir string) (*ContractTarget, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("contract target: %w", err)
	}
	t := &ContractTarget{ContractID: contractID, OutDir: outDir}
	if info.IsDir() {
		t.Path = filepath.Join(target, MaliciousFile)
		if _, err := os.Stat(t.Path); err != nil {
			return nil, fmt.Errorf("expected %s in %s: %w", MaliciousFile, target, err)
		}
		if t.ContractID == "" {
			t.ContractID = filepath.Base(filepath.Clean(target))
		}
		if t.OutDir == "" {
			t.OutDir = target
		}
		return t, nil
	}
	t.Path = target
	if t.ContractID == "" {
		t.ContractID = strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	}
	if t.OutDir == "" {
		t.OutDir = filepath.Dir(target)
	}
	return t, nil
}

func OutputPath(dir string, mode model.Mode, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("classify_%s.%s", mode, ext))
}

type FileClassifier struct {
	svc *ClassifyService
}

func NewFileClassifier(svc *ClassifyService) *FileClassifier {
	return &FileClassifier{svc: svc}
}

// ClassifyFile classifies one contract file and writes classify_<mode>.json.
func (f *FileClassifier) ClassifyFile(ctx context.Context, t *ContractTarget, mode model.Mode, modelName string, k int) (*ClassifyOutcome, string, error) {
	src, err := os.ReadFile(t.Path)
	if err != nil {
		return nil, "", err
	}
	out, err := f.svc.Classify(ctx, &model.ClassifyRequest{
		ContractID:   t.ContractID,
		ContractText: string(src),
		Mode:         mode,
		Model:        modelName,
		K:            k,
	})
	if err != nil {
		return nil, "", err
	}
	data, err := json.MarshalIndent(out.Result, "", "  ")
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(t.OutDir, 0o755); err != nil {
		return nil, "", err
	}
	path := OutputPath(t.OutDir, mode, "json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, "", err
	}
	return out, path, nil
}

type BatchFailure struct {
	ContractID string     `json:"contract_id"`
	Mode       model.Mode `json:"mode"`
	Error      string     `json:"error"`
}

type BatchReport struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Invalid   int            `json:"invalid"`
	Failures  []BatchFailure `json:"failures"`
}

type BatchClassifier struct {
	files       *FileClassifier
	concurrency int
}

func NewBatchClassifier(files *FileClassifier, concurrency int) *BatchClassifier {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchClassifier{files: files, concurrency: concurrency}
}

// ListContractDirs returns every <root>/<category>/<contract> directory that
// holds a malicious.sol, sorted.
func ListContractDirs(root string) ([]string, error) {
	categories, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0)
	for _, c := range categories {
		if !c.IsDir() {
			continue
		}
		contracts, err := os.ReadDir(filepath.Join(root, c.Name()))
		if err != nil {
			return nil, err
		}
		for _, ct := range contracts {
			if !ct.IsDir() {
				continue
			}
			dir := filepath.Join(root, c.Name(), ct.Name())
			if _, err := os.Stat(filepath.Join(dir, MaliciousFile)); err == nil {
				dirs = append(dirs, dir)
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// ClassifyAll classifies every contract under root in each mode. A failing
// contract is recorded in the report and does not stop the others.
func (b *BatchClassifier) ClassifyAll(ctx context.Context, root string, modes []model.Mode, modelName string, k int) (*BatchReport, error) {
	dirs, err := ListContractDirs(root)
	if err != nil {
		return nil, err
	}
	report := &BatchReport{Failures: make([]BatchFailure, 0)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, dir := range dirs {
		for _, mode := range modes {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				t, err := ResolveTarget(dir, "", "")
				var out *ClassifyOutcome
				if err == nil {
					out, _, err = b.files.ClassifyFile(gctx, t, mode, modelName, k)
				}
				mu.Lock()
				defer mu.Unlock()
				report.Total++
				if err != nil {
					logutil.GetLogger(gctx).Error("classify contract failed",
						zap.String("dir", dir), zap.String("mode", string(mode)), zap.Error(err))
					report.Failures = append(report.Failures, BatchFailure{
						ContractID: filepath.Base(dir),
						Mode:       mode,
						Error:      err.Error(),
					})
					return nil
				}
				report.Succeeded++
				if !out.Valid {
					report.Invalid++
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	sort.Slice(report.Failures, func(i, j int) bool {
		if report.Failures[i].ContractID == report.Failures[j].ContractID {
			return report.Failures[i].Mode < report.Failures[j].Mode
		}
		return report.Failures[i].ContractID < report.Failures[j].ContractID
	})
	return report, nil
}
