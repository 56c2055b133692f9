package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/parser"
	appErr "github.com/xxxsen/solidguard/internal/pkg/errors"
	"github.com/xxxsen/solidguard/internal/prompt"
)

var ErrGenerationExhausted = errors.New("contract generation exhausted retries")

const (
	defaultGenerateAttempts    = 3
	defaultGenerateTemperature = 0.7

	MaliciousFile = "malicious.sol"
	SafeFile      = "safe.sol"
)

type GenerateConfig struct {
	MaxAttempts int
	Temperature float32
}

type GeneratedContract struct {
	ContractID string           `json:"contract_id"`
	AttackType model.AttackType `json:"attack_type"`
	Model      string           `json:"model"`
	Metadata   map[string]any   `json:"metadata"`
	Malicious  string           `json:"malicious"`
	Safe       string           `json:"safe,omitempty"`
	Attempts   int              `json:"attempts"`
	Dir        string           `json:"dir,omitempty"`
}

type GenerateService struct {
	completer ModelCompleter
	templates *prompt.Templates
	cfg       GenerateConfig
}

func NewGenerateService(completer ModelCompleter, templates *prompt.Templates, cfg GenerateConfig) *GenerateService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultGenerateAttempts
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultGenerateTemperature
	}
	return &GenerateService{completer: completer, templates: templates, cfg: cfg}
}

func (s *GenerateService) resolveModel(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.completer.DefaultModel()
	}
	if !s.completer.Supports(name) {
		return "", fmt.Errorf("%w: unsupported model %q", appErr.ErrInvalid, name)
	}
	return name, nil
}

// Generate asks the model for a vulnerable contract of the given attack type.
func (s *GenerateService) Generate(ctx context.Context, attackType model.AttackType, contractID, modelName string) (*GeneratedContract, error) {
	return s.generate(ctx, attackType, contractID, modelName, false)
}

func (s *GenerateService) generate(ctx context.Context, attackType model.AttackType, contractID, modelName string, requireSafe bool) (*GeneratedContract, error) {
	if !attackType.Valid() {
		return nil, fmt.Errorf("%w: invalid attack type %q", appErr.ErrInvalid, attackType)
	}
	modelName, err := s.resolveModel(modelName)
	if err != nil {
		return nil, err
	}
	if contractID == "" {
		contractID = newID()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("contract_id", contractID),
		zap.String("attack_type", string(attackType)),
		zap.String("model", modelName),
	)
	text := prompt.Fill(s.templates.Generate, map[string]string{
		prompt.VarAttackType: string(attackType),
		prompt.VarContractID: contractID,
	})
	temperature := s.cfg.Temperature
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		raw, err := s.completer.Complete(ctx, &ai.CompletionRequest{
			Model:       modelName,
			Prompt:      text,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", appErr.ErrUpstream, err)
		}
		gen, err := parser.ParseGeneration(raw)
		if err == nil && requireSafe && gen.Safe == "" {
			err = fmt.Errorf("%w: %q not found", parser.ErrMarkerMissing, parser.SafeMarker)
		}
		if err != nil {
			lastErr = err
			logger.Warn("generation output unusable, retrying", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		logger.Info("contract generated", zap.Int("attempt", attempt))
		return &GeneratedContract{
			ContractID: contractID,
			AttackType: attackType,
			Model:      modelName,
			Metadata:   gen.Metadata,
			Malicious:  gen.Malicious,
			Safe:       gen.Safe,
			Attempts:   attempt,
		}, nil
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrGenerationExhausted, s.cfg.MaxAttempts, lastErr)
}

// GenerateDataset writes n contract pairs under outDir as
// <attack>/<attack>_NNN/{malicious,safe}.sol, always topping up the attack
// type with the fewest samples.
func (s *GenerateService) GenerateDataset(ctx context.Context, outDir string, n int, modelName string) ([]*GeneratedContract, error) {
	out := make([]*GeneratedContract, 0, n)
	for i := 0; i < n; i++ {
		attack, err := nextAttackType(outDir)
		if err != nil {
			return out, err
		}
		idx, err := nextLocalIndex(outDir, attack)
		if err != nil {
			return out, err
		}
		contractID := fmt.Sprintf("%s_%03d", attack, idx)
		gen, err := s.generate(ctx, attack, contractID, modelName, true)
		if err != nil {
			return out, err
		}
		dir := filepath.Join(outDir, string(attack), contractID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return out, err
		}
		if err := os.WriteFile(filepath.Join(dir, MaliciousFile), []byte(gen.Malicious), 0o644); err != nil {
			return out, err
		}
		if err := os.WriteFile(filepath.Join(dir, SafeFile), []byte(gen.Safe), 0o644); err != nil {
			return out, err
		}
		gen.Dir = dir
		out = append(out, gen)
	}
	return out, nil
}

func countSamples(outDir string, attack model.AttackType) (int, error) {
	entries, err := os.ReadDir(filepath.Join(outDir, string(attack)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			count++
		}
	}
	return count, nil
}

func nextAttackType(outDir string) (model.AttackType, error) {
	best := model.AttackTypes[0]
	bestCount := -1
	for _, attack := range model.AttackTypes {
		count, err := countSamples(outDir, attack)
		if err != nil {
			return "", err
		}
		if bestCount < 0 || count < bestCount {
			best, bestCount = attack, count
		}
	}
	return best, nil
}

func nextLocalIndex(outDir string, attack model.AttackType) (int, error) {
	entries, err := os.ReadDir(filepath.Join(outDir, string(attack)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	maxIdx := -1
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), string(attack)) {
			continue
		}
		suffix := e.Name()[strings.LastIndex(e.Name(), "_")+1:]
		if idx, err := strconv.Atoi(suffix); err == nil && idx > maxIdx {
			maxIdx = idx
		}
	}
	return maxIdx + 1, nil
}
