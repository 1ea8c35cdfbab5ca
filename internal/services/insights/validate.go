package insights

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// Validation is the tagged result of checking model output against the annotation schema.
// Annotations holds every item that could be salvaged, in input order.
type Validation struct {
	Status      models.PayloadStatus
	Annotations []models.NarrativeAnnotation
	Violations  []string
}

// Usable reports whether the payload produced at least one annotation.
func (v Validation) Usable() bool {
	return len(v.Annotations) > 0
}

var annotationFields = map[string]bool{"symbol": true, "thesis": true, "risks": true, "action": true, "signals": true}
var signalFields = map[string]bool{"valuation": true, "momentum": true, "quality": true}

// ValidateAnnotations parses raw model text. Items with a missing or mistyped required field are
// dropped; soft problems (extra fields, an over-long thesis, too many risks) are repaired and
// recorded. Status is PayloadValid only when nothing had to be dropped or repaired.
func ValidateAnnotations(raw string) Validation {
	text := stripCodeFences(raw)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Validation{
			Status:      models.PayloadNotJSON,
			Annotations: []models.NarrativeAnnotation{},
			Violations:  []string{fmt.Sprintf("response is not JSON: %v", err)},
		}
	}

	v := Validation{Status: models.PayloadValid, Annotations: []models.NarrativeAnnotation{}}

	var items []any
	switch top := doc.(type) {
	case map[string]any:
		for k := range top {
			if k != "annotations" {
				v.violate("unexpected top-level field %q", k)
			}
		}
		list, ok := top["annotations"].([]any)
		if !ok {
			v.violate("missing or non-array \"annotations\"")
			return v
		}
		items = list
	case []any:
		v.violate("top-level array instead of {\"annotations\": [...]}")
		items = top
	default:
		v.violate("top-level value is not an object")
		return v
	}

	for i, item := range items {
		ann, ok := v.validateItem(i, item)
		if ok {
			v.Annotations = append(v.Annotations, ann)
		}
	}
	return v
}

func (v *Validation) violate(format string, args ...any) {
	v.Status = models.PayloadSchemaViolation
	v.Violations = append(v.Violations, fmt.Sprintf(format, args...))
}

func (v *Validation) validateItem(i int, item any) (models.NarrativeAnnotation, bool) {
	var ann models.NarrativeAnnotation

	obj, ok := item.(map[string]any)
	if !ok {
		v.violate("annotations[%d]: not an object", i)
		return ann, false
	}
	for k := range obj {
		if !annotationFields[k] {
			v.violate("annotations[%d]: unexpected field %q", i, k)
		}
	}

	symbol, _ := obj["symbol"].(string)
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		v.violate("annotations[%d]: missing symbol", i)
		return ann, false
	}
	ann.Symbol = symbol

	thesis, _ := obj["thesis"].(string)
	thesis = strings.TrimSpace(thesis)
	if thesis == "" {
		v.violate("annotations[%d] %s: missing thesis", i, symbol)
		return ann, false
	}
	if utf8.RuneCountInString(thesis) > models.MaxThesisChars {
		v.violate("annotations[%d] %s: thesis longer than %d characters", i, symbol, models.MaxThesisChars)
		thesis = string([]rune(thesis)[:models.MaxThesisChars])
	}
	ann.Thesis = thesis

	rawRisks, ok := obj["risks"].([]any)
	if !ok {
		v.violate("annotations[%d] %s: risks is not an array", i, symbol)
		return ann, false
	}
	for _, r := range rawRisks {
		if s, ok := r.(string); ok && strings.TrimSpace(s) != "" {
			ann.Risks = append(ann.Risks, strings.TrimSpace(s))
		}
	}
	if len(ann.Risks) < models.MinRisks {
		v.violate("annotations[%d] %s: no risks", i, symbol)
		return ann, false
	}
	if len(ann.Risks) > models.MaxRisks {
		v.violate("annotations[%d] %s: %d risks, keeping first %d", i, symbol, len(ann.Risks), models.MaxRisks)
		ann.Risks = ann.Risks[:models.MaxRisks]
	}

	action, _ := obj["action"].(string)
	ann.Action = matchEnum(action, actions)
	if ann.Action == "" {
		v.violate("annotations[%d] %s: invalid action %q", i, symbol, action)
		return ann, false
	}

	signals, ok := obj["signals"].(map[string]any)
	if !ok {
		v.violate("annotations[%d] %s: signals is not an object", i, symbol)
		return ann, false
	}
	for k := range signals {
		if !signalFields[k] {
			v.violate("annotations[%d] %s: unexpected signal %q", i, symbol, k)
		}
	}
	valuation, _ := signals["valuation"].(string)
	momentum, _ := signals["momentum"].(string)
	quality, _ := signals["quality"].(string)
	ann.Signals = models.NarrativeSignals{
		Valuation: matchEnum(valuation, valuationSignals),
		Momentum:  matchEnum(momentum, momentumSignals),
		Quality:   matchEnum(quality, qualitySignals),
	}
	if ann.Signals.Valuation == "" || ann.Signals.Momentum == "" || ann.Signals.Quality == "" {
		v.violate("annotations[%d] %s: invalid signals", i, symbol)
		return ann, false
	}

	return ann, true
}

// matchEnum returns the canonical spelling of value from allowed, compared case-insensitively.
func matchEnum(value string, allowed []string) string {
	value = strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a
		}
	}
	return ""
}

// stripCodeFences removes markdown code fences models add despite being told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
