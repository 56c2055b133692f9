package service

import (
	"context"
	"sync"

	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/knowledge"
)

type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	fallback  func(req *ai.CompletionRequest) (string, error)
	err       error
	requests  []*ai.CompletionRequest
	models    []string
}

func (f *fakeCompleter) Complete(_ context.Context, req *ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) > 0 {
		out := f.responses[0]
		f.responses = f.responses[1:]
		return out, nil
	}
	if f.fallback != nil {
		return f.fallback(req)
	}
	return "", nil
}

func (f *fakeCompleter) Supports(model string) bool {
	for _, m := range f.modelList() {
		if m == model {
			return true
		}
	}
	return false
}

func (f *fakeCompleter) DefaultModel() string {
	return f.modelList()[0]
}

func (f *fakeCompleter) modelList() []string {
	if len(f.models) == 0 {
		return []string{"gpt-4.1-mini", "gpt-4.1", "gpt-5.1"}
	}
	return f.models
}

type fakeRetriever struct {
	mu      sync.Mutex
	hits    []knowledge.Hit
	err     error
	queries []string
	ks      []int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]knowledge.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}
