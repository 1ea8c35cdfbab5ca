package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/interfaces"
	"github.com/bobmcallan/vire-insights/internal/models"
	"github.com/bobmcallan/vire-insights/internal/services/insights"
)

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer
	logger := a.Logger

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createGetInsightsTool(), handleGetInsights(a.InsightsService, logger))
	s.AddTool(createRefreshInsightsTool(), handleRefreshInsights(a.InsightsService, logger))
	s.AddTool(createInvalidateInsightsTool(), handleInvalidateInsights(a.InsightsService, logger))
	s.AddTool(createGetTraceTool(), handleGetTrace(a.Traces, logger))
	s.AddTool(createRotateTraceTool(), handleRotateTrace(a.Traces, logger))
}

// handleGetVersion implements the get_version tool
func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Vire Insights Server\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			common.GetVersion(), common.GetBuild(), common.GetGitCommit())
		return textResult(result), nil
	}
}

// handleGetInsights implements the get_portfolio_insights tool
func handleGetInsights(svc interfaces.InsightsService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, sessionID := identity(ctx, request)

		resp, err := svc.GetInsights(ctx, userID, sessionID, analysisParams(request))
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Get insights failed")
			return errorResult(fmt.Sprintf("Insights error: %v%s", err, traceSuffix(err))), nil
		}
		return textResult(formatInsights(resp)), nil
	}
}

// handleRefreshInsights implements the refresh_portfolio_insights tool
func handleRefreshInsights(svc interfaces.InsightsService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, sessionID := identity(ctx, request)

		resp, err := svc.RefreshInsights(ctx, userID, sessionID, analysisParams(request))
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Refresh insights failed")
			return errorResult(fmt.Sprintf("Refresh error: %v%s", err, traceSuffix(err))), nil
		}
		return textResult(formatInsights(resp)), nil
	}
}

// handleInvalidateInsights implements the invalidate_portfolio_insights tool
func handleInvalidateInsights(svc interfaces.InsightsService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, _ := identity(ctx, request)

		key, err := svc.InvalidateInsights(ctx, userID, analysisParams(request))
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Invalidate insights failed")
			if errors.Is(err, insights.ErrPositionSource) {
				return errorResult(fmt.Sprintf("Positions unavailable: %v", err)), nil
			}
			return errorResult(fmt.Sprintf("Invalidate error: %v", err)), nil
		}
		return textResult(fmt.Sprintf("Invalidated cache entry `%s`", key.String())), nil
	}
}

// handleGetTrace implements the get_trace_id tool
func handleGetTrace(traces interfaces.TraceCorrelator, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		_, sessionID := identity(ctx, request)

		id, err := traces.TraceID(ctx, sessionID)
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("Trace lookup failed")
			return errorResult(fmt.Sprintf("Trace error: %v", err)), nil
		}
		return textResult(fmt.Sprintf("Session: %s\nTrace ID: %s", sessionID, id)), nil
	}
}

// handleRotateTrace implements the rotate_trace tool
func handleRotateTrace(traces interfaces.TraceCorrelator, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		_, sessionID := identity(ctx, request)

		id, err := traces.Rotate(ctx, sessionID)
		if err != nil {
			logger.Error().Err(err).Str("session_id", sessionID).Msg("Trace rotation failed")
			return errorResult(fmt.Sprintf("Trace error: %v", err)), nil
		}
		return textResult(fmt.Sprintf("Session: %s\nTrace ID: %s", sessionID, id)), nil
	}
}

// identity resolves user and session from tool arguments, then the request's user context.
func identity(ctx context.Context, request mcp.CallToolRequest) (userID, sessionID string) {
	userID = strings.TrimSpace(request.GetString("user_id", ""))
	if userID == "" {
		userID = common.ResolveUserID(ctx)
	}
	sessionID = strings.TrimSpace(request.GetString("session_id", ""))
	if sessionID == "" {
		if uc := common.UserContextFromContext(ctx); uc != nil && strings.TrimSpace(uc.SessionID) != "" {
			sessionID = strings.TrimSpace(uc.SessionID)
		} else {
			sessionID = userID
		}
	}
	return userID, sessionID
}

// analysisParams reads the optional analysis arguments. Empty fields take the service defaults.
func analysisParams(request mcp.CallToolRequest) models.AnalysisParams {
	return models.AnalysisParams{
		Model:         strings.TrimSpace(request.GetString("model", "")),
		HorizonMonths: request.GetInt("horizon_months", 0),
		RiskProfile:   strings.TrimSpace(request.GetString("risk_profile", "")),
	}
}

// Helper functions

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// traceSuffix names the trace id carried by a position source failure, if any.
func traceSuffix(err error) string {
	var perr *insights.PositionSourceError
	if errors.As(err, &perr) && perr.TraceID != "" {
		return fmt.Sprintf(" (trace %s)", perr.TraceID)
	}
	return ""
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
