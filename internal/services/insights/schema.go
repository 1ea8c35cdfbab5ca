package insights

import "github.com/bobmcallan/vire-insights/internal/models"

// Signal vocabularies accepted in annotations.
var (
	valuationSignals = []string{"cheap", "fair", "expensive"}
	momentumSignals  = []string{"positive", "neutral", "negative"}
	qualitySignals   = []string{"high", "medium", "low"}
	actions          = []string{models.ActionAdd, models.ActionHold, models.ActionTrim, models.ActionHedge}
)

// AnnotationSchema returns the strict JSON schema requested from the model.
// A fresh map is returned on every call so callers may not mutate shared state.
func AnnotationSchema() map[string]any {
	enum := func(values []string) map[string]any {
		return map[string]any{"type": "string", "enum": toAny(values)}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"annotations"},
		"properties": map[string]any{
			"annotations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"symbol", "thesis", "risks", "action", "signals"},
					"properties": map[string]any{
						"symbol": map[string]any{"type": "string"},
						"thesis": map[string]any{"type": "string", "maxLength": models.MaxThesisChars},
						"risks": map[string]any{
							"type":     "array",
							"items":    map[string]any{"type": "string"},
							"minItems": models.MinRisks,
							"maxItems": models.MaxRisks,
						},
						"action": enum(actions),
						"signals": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"required":             []any{"valuation", "momentum", "quality"},
							"properties": map[string]any{
								"valuation": enum(valuationSignals),
								"momentum":  enum(momentumSignals),
								"quality":   enum(qualitySignals),
							},
						},
					},
				},
			},
		},
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
