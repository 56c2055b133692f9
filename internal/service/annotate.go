package service

import "github.com/xxxsen/solidguard/internal/model"

// Annotate overwrites the refs of every finding. In raw mode refs become nil.
// In rag mode every finding gets its own copy of the retrieved chunk ids, in
// retrieval order. An empty attack list is normalised to nil.
func Annotate(result *model.ClassificationResult, mode model.Mode, refs []string) {
	if result == nil {
		return
	}
	if len(result.Attacks) == 0 {
		result.Attacks = nil
		return
	}
	for i := range result.Attacks {
		if mode != model.ModeRAG {
			result.Attacks[i].Refs = nil
			continue
		}
		cp := make([]string, len(refs))
		copy(cp, refs)
		result.Attacks[i].Refs = cp
	}
}
