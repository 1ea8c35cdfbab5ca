package app

import "github.com/mark3labs/mcp-go/mcp"

func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the insights server version and status. Use this to verify connectivity."),
	)
}

// analysisOptions are shared by every tool that derives a cache key.
func analysisOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("user_id",
			mcp.Description("User whose positions are analysed. Defaults to the caller's user context."),
		),
		mcp.WithString("model",
			mcp.Description("Narrative model identifier (default: server configuration)"),
		),
		mcp.WithNumber("horizon_months",
			mcp.Description("Investment horizon in months, 1-120 (default: 12)"),
		),
		mcp.WithString("risk_profile",
			mcp.Description("Target risk profile: conservative, balanced, or aggressive (default: balanced)"),
			mcp.Enum("conservative", "balanced", "aggressive"),
		),
	}
}

func createGetInsightsTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Get portfolio insights: deterministic allocation, risk and concentration figures plus per-position narrative annotations. Served from cache when the portfolio composition and parameters are unchanged."),
	}, analysisOptions()...)
	opts = append(opts, mcp.WithString("session_id",
		mcp.Description("Session used for trace correlation. Defaults to the user id."),
	))
	return mcp.NewTool("get_portfolio_insights", opts...)
}

func createRefreshInsightsTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Recompute portfolio insights, ignoring and overwriting any cached result. Calls the narrative model."),
	}, analysisOptions()...)
	opts = append(opts, mcp.WithString("session_id",
		mcp.Description("Session used for trace correlation. Defaults to the user id."),
	))
	return mcp.NewTool("refresh_portfolio_insights", opts...)
}

func createInvalidateInsightsTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Drop the cached insights for the user's current portfolio and parameters. The next read recomputes."),
	}, analysisOptions()...)
	return mcp.NewTool("invalidate_portfolio_insights", opts...)
}

func createGetTraceTool() mcp.Tool {
	return mcp.NewTool("get_trace_id",
		mcp.WithDescription("Get the trace id attached to narrative requests for a session"),
		mcp.WithString("session_id",
			mcp.Description("Session to look up. Defaults to the caller's session."),
		),
	)
}

func createRotateTraceTool() mcp.Tool {
	return mcp.NewTool("rotate_trace",
		mcp.WithDescription("Start a new trace id for a session. Later narrative requests carry the new id."),
		mcp.WithString("session_id",
			mcp.Description("Session to rotate. Defaults to the caller's session."),
		),
	)
}
