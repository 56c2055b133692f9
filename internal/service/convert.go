package service

import (
	"encoding/json"
	"fmt"

	"github.com/xxxsen/solidguard/internal/model"
)

// toResult maps a decoded completion object onto the typed result. Fields of
// the wrong type are dropped; the validator reports them separately.
func toResult(doc map[string]any) *model.ClassificationResult {
	res := &model.ClassificationResult{
		ID:       stringOf(doc["id"]),
		Solidity: stringOf(doc["solidity"]),
	}
	list, _ := doc["attacks"].([]any)
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f := model.Finding{
			Type:        model.AttackType(stringOf(obj["type"])),
			Severity:    model.Severity(stringOf(obj["severity"])),
			Description: stringOf(obj["description"]),
			Lines:       []int{},
		}
		lines, _ := obj["lines"].([]any)
		for _, l := range lines {
			if n, ok := l.(json.Number); ok {
				if v, err := n.Int64(); err == nil {
					f.Lines = append(f.Lines, int(v))
				}
			}
		}
		if refs, ok := obj["refs"].([]any); ok {
			f.Refs = make([]string, 0, len(refs))
			for _, r := range refs {
				if s, ok := r.(string); ok {
					f.Refs = append(f.Refs, s)
				}
			}
		}
		res.Attacks = append(res.Attacks, f)
	}
	return res
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}
