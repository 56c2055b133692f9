package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CompleterEntry struct {
	Name      string
	Models    []string
	Completer ICompleter
}

// Router dispatches a completion to the first entry that serves the
// requested model. An empty model resolves to the default model.
type Router struct {
	items        []CompleterEntry
	defaultModel string
}

func NewRouter(items []CompleterEntry, defaultModel string) (*Router, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no completion provider configured")
	}
	r := &Router{items: items, defaultModel: strings.TrimSpace(defaultModel)}
	if r.defaultModel == "" {
		for _, item := range items {
			if len(item.Models) > 0 {
				r.defaultModel = item.Models[0]
				break
			}
		}
	}
	if !r.Supports(r.defaultModel) {
		return nil, fmt.Errorf("default model %q is not served by any provider", r.defaultModel)
	}
	return r, nil
}

func (r *Router) DefaultModel() string {
	return r.defaultModel
}

func (r *Router) Models() []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range r.items {
		for _, m := range item.Models {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func (r *Router) Supports(model string) bool {
	return r.lookup(model) != nil
}

func (r *Router) lookup(model string) *CompleterEntry {
	for i := range r.items {
		for _, m := range r.items[i].Models {
			if m == model {
				return &r.items[i]
			}
		}
	}
	return nil
}

func (r *Router) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	resolved := *req
	if resolved.Model == "" {
		resolved.Model = r.defaultModel
	}
	entry := r.lookup(resolved.Model)
	if entry == nil || entry.Completer == nil {
		return "", fmt.Errorf("model %q is not served by any provider", resolved.Model)
	}
	res, err := entry.Completer.Complete(ctx, &resolved)
	if err != nil {
		logutil.GetLogger(ctx).Warn("completion failed",
			zap.String("provider", entry.Name),
			zap.String("model", resolved.Model),
			zap.Error(err),
		)
		return "", err
	}
	return res, nil
}
