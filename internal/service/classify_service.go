package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/knowledge"
	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/parser"
	appErr "github.com/xxxsen/solidguard/internal/pkg/errors"
	"github.com/xxxsen/solidguard/internal/prompt"
	"github.com/xxxsen/solidguard/internal/repo"
	"github.com/xxxsen/solidguard/internal/validate"
)

const DefaultK = 5

// ModelCompleter is a completer that knows which models it can serve.
type ModelCompleter interface {
	ai.ICompleter
	Supports(model string) bool
	DefaultModel() string
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]knowledge.Hit, error)
}

type ClassifyOutcome struct {
	RecordID string                      `json:"record_id,omitempty"`
	Mode     model.Mode                  `json:"mode"`
	Model    string                      `json:"model"`
	Result   *model.ClassificationResult `json:"result"`
	Valid    bool                        `json:"valid"`
	Errors   []string                    `json:"errors"`
	Refs     []string                    `json:"refs"`
	Hits     []knowledge.Hit             `json:"-"`
	Raw      string                      `json:"-"`
}

type ClassifyService struct {
	completer ModelCompleter
	retriever Retriever
	templates *prompt.Templates
	archive   *repo.ClassificationRepo
	defaultK  int
}

type ClassifyOption func(*ClassifyService)

func WithArchive(r *repo.ClassificationRepo) ClassifyOption {
	return func(s *ClassifyService) {
		s.archive = r
	}
}

func WithDefaultK(k int) ClassifyOption {
	return func(s *ClassifyService) {
		if k > 0 {
			s.defaultK = k
		}
	}
}

func NewClassifyService(completer ModelCompleter, retriever Retriever, templates *prompt.Templates, opts ...ClassifyOption) *ClassifyService {
	s := &ClassifyService{
		completer: completer,
		retriever: retriever,
		templates: templates,
		defaultK:  DefaultK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ClassifyService) resolve(req *model.ClassifyRequest) (*model.ClassifyRequest, error) {
	if req == nil || strings.TrimSpace(req.ContractText) == "" {
		return nil, fmt.Errorf("%w: contract text is required", appErr.ErrInvalid)
	}
	out := *req
	mode, ok := model.ParseMode(string(req.Mode))
	if !ok {
		return nil, fmt.Errorf("%w: unsupported mode %q", appErr.ErrInvalid, req.Mode)
	}
	out.Mode = mode
	out.Model = strings.TrimSpace(req.Model)
	if out.Model == "" {
		out.Model = s.completer.DefaultModel()
	}
	if !s.completer.Supports(out.Model) {
		return nil, fmt.Errorf("%w: unsupported model %q", appErr.ErrInvalid, out.Model)
	}
	if out.K < 0 {
		return nil, fmt.Errorf("%w: k must not be negative", appErr.ErrInvalid)
	}
	if out.K == 0 {
		out.K = s.defaultK
	}
	if strings.TrimSpace(out.ContractID) == "" {
		out.ContractID = newID()
	}
	return &out, nil
}

// Classify runs one contract through prompt assembly, completion, parsing,
// validation and reference annotation. Validation problems do not fail the
// call; they are returned in the outcome.
func (s *ClassifyService) Classify(ctx context.Context, in *model.ClassifyRequest) (*ClassifyOutcome, error) {
	req, err := s.resolve(in)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("contract_id", req.ContractID),
		zap.String("mode", string(req.Mode)),
		zap.String("model", req.Model),
	)
	numbered := prompt.NumberLines(req.ContractText)
	vars := map[string]string{
		prompt.VarContract:   numbered,
		prompt.VarContractID: req.ContractID,
	}

	var hits []knowledge.Hit
	if req.Mode == model.ModeRAG {
		hits, err = s.retriever.Retrieve(ctx, numbered, req.K)
		if err != nil {
			if errors.Is(err, knowledge.ErrNotInitialized) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: retrieve reference documents: %w", appErr.ErrUpstream, err)
		}
		vars[prompt.VarRetrievedDocs] = prompt.RenderDocs(hits)
		logger.Debug("reference documents retrieved", zap.Int("k", req.K), zap.Int("hits", len(hits)))
	}

	temperature := float32(0)
	raw, err := s.completer.Complete(ctx, &ai.CompletionRequest{
		Model:       req.Model,
		System:      prompt.ClassifySystemPrompt,
		Prompt:      prompt.Fill(s.templates.Classify(req.Mode), vars),
		JSONMode:    true,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrUpstream, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty completion", appErr.ErrUpstream)
	}

	doc, err := parser.DecodeObject(raw)
	if err != nil {
		logger.Error("classification output unparsable", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", appErr.ErrParse, err)
	}
	valid, problems := validate.Validate(doc, req.ContractID, req.Mode)
	if !valid {
		logger.Warn("classification output failed validation", zap.Strings("errors", problems))
	}

	refs := hitIDs(hits, req.Mode)
	result := toResult(doc)
	Annotate(result, req.Mode, refs)

	out := &ClassifyOutcome{
		Mode:   req.Mode,
		Model:  req.Model,
		Result: result,
		Valid:  valid,
		Errors: problems,
		Refs:   refs,
		Hits:   hits,
		Raw:    raw,
	}
	s.archiveOutcome(ctx, req, out)
	logger.Info("contract classified", zap.Bool("valid", valid), zap.Int("findings", len(result.Attacks)))
	return out, nil
}

func (s *ClassifyService) archiveOutcome(ctx context.Context, req *model.ClassifyRequest, out *ClassifyOutcome) {
	if s.archive == nil {
		return
	}
	data, err := json.Marshal(out.Result)
	if err != nil {
		logutil.GetLogger(ctx).Error("encode classification for archive failed", zap.Error(err))
		return
	}
	rec := &model.ClassificationRecord{
		ID:         newID(),
		ContractID: req.ContractID,
		Mode:       req.Mode,
		Model:      req.Model,
		Result:     string(data),
		Valid:      out.Valid,
		Errors:     out.Errors,
		Ctime:      time.Now().Unix(),
	}
	if err := s.archive.Create(ctx, rec); err != nil {
		logutil.GetLogger(ctx).Error("archive classification failed", zap.Error(err), zap.String("contract_id", req.ContractID))
		return
	}
	out.RecordID = rec.ID
}

// Get loads an archived classification.
func (s *ClassifyService) Get(ctx context.Context, id string) (*model.ClassificationRecord, *model.ClassificationResult, error) {
	if s.archive == nil {
		return nil, nil, appErr.ErrNotFound
	}
	rec, err := s.archive.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var result model.ClassificationResult
	if err := json.Unmarshal([]byte(rec.Result), &result); err != nil {
		return nil, nil, fmt.Errorf("decode archived result %s: %w", id, err)
	}
	return rec, &result, nil
}

func hitIDs(hits []knowledge.Hit, mode model.Mode) []string {
	if mode != model.ModeRAG {
		return nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}
