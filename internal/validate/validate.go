// Package validate checks a decoded classification object against the result
// schema. Problems are collected, never fatal.
package validate

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/xxxsen/solidguard/internal/model"
)

// Validate reports every schema violation in doc, in document order.
func Validate(doc map[string]any, expectedID string, mode model.Mode) (bool, []string) {
	errs := make([]string, 0)
	if doc == nil {
		return false, []string{"output is not a JSON object"}
	}

	id, ok := doc["id"]
	switch {
	case !ok:
		errs = append(errs, "missing top-level key: id")
	default:
		if s, isStr := id.(string); !isStr || s != expectedID {
			errs = append(errs, fmt.Sprintf("id mismatch: expected %q, got %v", expectedID, id))
		}
	}
	if _, ok := doc["solidity"]; !ok {
		errs = append(errs, "missing top-level key: solidity")
	}

	attacks, ok := doc["attacks"]
	if !ok {
		errs = append(errs, "missing top-level key: attacks")
		return len(errs) == 0, errs
	}
	if attacks == nil {
		return len(errs) == 0, errs
	}
	list, ok := attacks.([]any)
	if !ok {
		errs = append(errs, fmt.Sprintf("attacks must be a list or null, got %s", typeName(attacks)))
		return len(errs) == 0, errs
	}
	for i, item := range list {
		errs = append(errs, validateFinding(i, item, mode)...)
	}
	return len(errs) == 0, errs
}

func validateFinding(i int, item any, mode model.Mode) []string {
	finding, ok := item.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("attacks[%d] must be an object, got %s", i, typeName(item))}
	}
	errs := make([]string, 0)

	typ, _ := finding["type"].(string)
	if !model.AttackType(typ).Valid() {
		errs = append(errs, fmt.Sprintf("attacks[%d].type invalid: %v", i, finding["type"]))
	}
	sev, _ := finding["severity"].(string)
	if !model.Severity(sev).Valid() {
		errs = append(errs, fmt.Sprintf("attacks[%d].severity invalid: %v", i, finding["severity"]))
	}
	if lines, ok := finding["lines"].([]any); !ok {
		errs = append(errs, fmt.Sprintf("attacks[%d].lines must be a list of integers", i))
	} else {
		for j, line := range lines {
			if !isInteger(line) {
				errs = append(errs, fmt.Sprintf("attacks[%d].lines[%d] is not an integer: %v", i, j, line))
			}
		}
	}
	if _, ok := finding["description"].(string); !ok {
		errs = append(errs, fmt.Sprintf("attacks[%d].description must be a string", i))
	}

	refs, present := finding["refs"]
	switch mode {
	case model.ModeRAG:
		list, ok := refs.([]any)
		if !present || !ok {
			errs = append(errs, fmt.Sprintf("attacks[%d].refs must be a list of strings in rag mode", i))
			break
		}
		for j, ref := range list {
			if _, ok := ref.(string); !ok {
				errs = append(errs, fmt.Sprintf("attacks[%d].refs[%d] is not a string", i, j))
			}
		}
	default:
		if refs != nil {
			errs = append(errs, fmt.Sprintf("attacks[%d].refs must be null in raw mode", i))
		}
	}
	return errs
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return true
		}
		return false
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	case int, int64:
		return true
	}
	return false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64:
		return "number"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
