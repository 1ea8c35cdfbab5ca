package models

// Annotation actions.
const (
	ActionAdd   = "Add"
	ActionHold  = "Hold"
	ActionTrim  = "Trim"
	ActionHedge = "Hedge"
)

// Annotation limits.
const (
	MaxThesisChars = 240
	MinRisks       = 1
	MaxRisks       = 3
)

// NarrativeAnnotation is the model's qualitative view of one position.
type NarrativeAnnotation struct {
	Symbol  string           `json:"symbol"`
	Thesis  string           `json:"thesis"`
	Risks   []string         `json:"risks"`
	Action  string           `json:"action"`
	Signals NarrativeSignals `json:"signals"`
}

// NarrativeSignals are the three categorical signals attached to an annotation.
type NarrativeSignals struct {
	Valuation string `json:"valuation"` // cheap|fair|expensive
	Momentum  string `json:"momentum"`  // positive|neutral|negative
	Quality   string `json:"quality"`   // high|medium|low
}

// PositionAnalysis is a prepared position joined with its annotation.
// Insights is nil and DataGap is true when the model produced nothing for the symbol.
type PositionAnalysis struct {
	PreparedPosition
	Insights *NarrativeAnnotation `json:"insights"`
	DataGap  bool                 `json:"data_gap"`
}

// PayloadStatus tags how a model response validated against the annotation schema.
type PayloadStatus string

const (
	PayloadValid           PayloadStatus = "valid"
	PayloadSchemaViolation PayloadStatus = "schema_violation"
	PayloadNotJSON         PayloadStatus = "not_json"
)

// CompletionRequest is the body sent to a text-completion service.
type CompletionRequest struct {
	Model        string         `json:"model"`
	SystemPrompt string         `json:"system_prompt"`
	UserPrompt   string         `json:"user_prompt"`
	JSONSchema   map[string]any `json:"json_schema"`
	TraceID      string         `json:"trace_id"`
}

// CompletionResponse is the raw text returned by a completion service.
type CompletionResponse struct {
	Text         string `json:"response"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
}

// NarrativeData is the model-side half of an insights response.
type NarrativeData struct {
	PayloadStatus PayloadStatus         `json:"payload_status"`
	Annotations   []NarrativeAnnotation `json:"annotations"`
	Violations    []string              `json:"violations,omitempty"`
	TokensUsed    int                   `json:"tokens_used,omitempty"`
	ModelVersion  string                `json:"model_version,omitempty"`
	Truncated     bool                  `json:"prompt_truncated"`
}
