package server

// ParamDefinition describes one parameter of a catalog entry.
type ParamDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	In          string `json:"in"` // query, body or header
}

// ToolDefinition maps an MCP tool to its REST equivalent.
type ToolDefinition struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Params      []ParamDefinition `json:"params,omitempty"`
}

// buildToolCatalog returns the tool catalog and the HTTP mapping of each tool.
// Used by GET /api/mcp/tools for clients that proxy tools onto the REST API.
func buildToolCatalog() []ToolDefinition {
	analysis := []ParamDefinition{
		{Name: "model", Type: "string", Description: "Narrative model identifier", In: "query"},
		{Name: "horizon_months", Type: "number", Description: "Investment horizon in months, 1-120", In: "query"},
		{Name: "risk_profile", Type: "string", Description: "conservative, balanced or aggressive", In: "query"},
	}
	user := ParamDefinition{Name: HeaderUserID, Type: "string", Description: "User whose positions are analysed", In: "header"}
	session := ParamDefinition{Name: HeaderSessionID, Type: "string", Description: "Session for trace correlation", In: "header"}

	withAnalysis := func(extra ...ParamDefinition) []ParamDefinition {
		out := append([]ParamDefinition{}, analysis...)
		return append(out, extra...)
	}

	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the insights server version and status.",
			Method:      "GET",
			Path:        "/api/version",
		},
		{
			Name:        "get_portfolio_insights",
			Description: "Get portfolio insights, served from cache when composition and parameters are unchanged.",
			Method:      "GET",
			Path:        "/api/insights",
			Params:      withAnalysis(user, session),
		},
		{
			Name:        "refresh_portfolio_insights",
			Description: "Recompute portfolio insights and overwrite the cached result.",
			Method:      "POST",
			Path:        "/api/insights/refresh",
			Params:      withAnalysis(user, session),
		},
		{
			Name:        "invalidate_portfolio_insights",
			Description: "Drop the cached insights for the current portfolio and parameters.",
			Method:      "DELETE",
			Path:        "/api/insights",
			Params:      withAnalysis(user),
		},
		{
			Name:        "get_trace_id",
			Description: "Get the trace id attached to narrative requests for a session.",
			Method:      "GET",
			Path:        "/api/trace",
			Params:      []ParamDefinition{session},
		},
		{
			Name:        "rotate_trace",
			Description: "Start a new trace id for a session.",
			Method:      "POST",
			Path:        "/api/trace/rotate",
			Params:      []ParamDefinition{session},
		},
	}
}
