package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedCompleter struct {
	name string
	seen []string
}

func (n *namedCompleter) Complete(_ context.Context, req *CompletionRequest) (string, error) {
	n.seen = append(n.seen, req.Model)
	return n.name, nil
}

func TestRouterDispatchesByModel(t *testing.T) {
	openai := &namedCompleter{name: "openai"}
	claude := &namedCompleter{name: "claude"}
	r, err := NewRouter([]CompleterEntry{
		{Name: "openai", Models: []string{"gpt-4.1", "gpt-5.1"}, Completer: openai},
		{Name: "claude", Models: []string{"claude-sonnet-4-5", "gpt-4.1"}, Completer: claude},
	}, "gpt-5.1")
	require.NoError(t, err)
	require.Equal(t, []string{"gpt-4.1", "gpt-5.1", "claude-sonnet-4-5"}, r.Models())

	out, err := r.Complete(context.Background(), &CompletionRequest{Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	require.Equal(t, "claude", out)

	out, err = r.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "openai", out)
	require.Equal(t, []string{"gpt-5.1"}, openai.seen)

	_, err = r.Complete(context.Background(), &CompletionRequest{Model: "gpt-9"})
	require.Error(t, err)
	require.False(t, r.Supports("gpt-9"))
}

func TestNewRouterValidation(t *testing.T) {
	_, err := NewRouter(nil, "")
	require.Error(t, err)

	_, err = NewRouter([]CompleterEntry{{Name: "openai", Models: []string{"gpt-4.1"}, Completer: &namedCompleter{}}}, "gpt-5.1")
	require.Error(t, err)

	r, err := NewRouter([]CompleterEntry{{Name: "openai", Models: []string{"gpt-4.1"}, Completer: &namedCompleter{}}}, "")
	require.NoError(t, err)
	require.Equal(t, "gpt-4.1", r.DefaultModel())
}
