package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/models"
	"github.com/bobmcallan/vire-insights/internal/services/insights"
)

// refreshRequest is the optional JSON body of POST /api/insights/refresh.
type refreshRequest struct {
	Model         string `json:"model"`
	HorizonMonths int    `json:"horizon_months"`
	RiskProfile   string `json:"risk_profile"`
}

// handleInsights routes GET (read-through) and DELETE (invalidate) on /api/insights.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}

	params, ok := ParamsFromQuery(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	userID := common.ResolveUserID(ctx)

	if r.Method == http.MethodDelete {
		key, err := s.app.InsightsService.InvalidateInsights(ctx, userID, params)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "key": key.String()})
		return
	}

	resp, err := s.app.InsightsService.GetInsights(ctx, userID, common.ResolveSessionID(ctx), params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeEnvelope(w, resp)
}

// handleInsightsRefresh handles POST /api/insights/refresh. Parameters come from the JSON
// body when one is sent, otherwise from the query string.
func (s *Server) handleInsightsRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	params, ok := ParamsFromQuery(w, r)
	if !ok {
		return
	}

	if hasBody(r) {
		var body refreshRequest
		if !DecodeJSON(w, r, &body) {
			return
		}
		if body.Model != "" {
			params.Model = strings.TrimSpace(body.Model)
		}
		if body.HorizonMonths != 0 {
			params.HorizonMonths = body.HorizonMonths
		}
		if body.RiskProfile != "" {
			params.RiskProfile = strings.TrimSpace(body.RiskProfile)
		}
	}

	ctx := r.Context()
	resp, err := s.app.InsightsService.RefreshInsights(ctx, common.ResolveUserID(ctx), common.ResolveSessionID(ctx), params)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeEnvelope(w, resp)
}

// handleTrace handles GET /api/trace.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sessionID := common.ResolveSessionID(r.Context())
	id, err := s.app.Traces.TraceID(r.Context(), sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Trace lookup failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, "Trace lookup failed", "trace_unavailable")
		return
	}
	w.Header().Set(HeaderTraceID, id)
	WriteJSON(w, http.StatusOK, map[string]string{"trace_id": id})
}

// handleTraceRotate handles POST /api/trace/rotate.
func (s *Server) handleTraceRotate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	sessionID := common.ResolveSessionID(r.Context())
	id, err := s.app.Traces.Rotate(r.Context(), sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Trace rotation failed")
		WriteErrorWithCode(w, http.StatusInternalServerError, "Trace rotation failed", "trace_unavailable")
		return
	}
	s.logger.Info().Str("session_id", sessionID).Str("trace_id", id).Msg("Trace rotated")
	w.Header().Set(HeaderTraceID, id)
	WriteJSON(w, http.StatusOK, map[string]string{"trace_id": id})
}

// writeEnvelope writes a pipeline result. Pipeline-level failures travel inside the 200
// envelope; only the status field and errors list describe them.
func writeEnvelope(w http.ResponseWriter, resp *models.InsightsResponse) {
	if resp.TraceID != "" {
		w.Header().Set(HeaderTraceID, resp.TraceID)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// writeServiceError maps errors returned by the insights service to HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, insights.ErrPositionSource) {
		resp := ErrorResponse{Error: err.Error(), Code: "positions_unavailable"}
		var perr *insights.PositionSourceError
		if errors.As(err, &perr) && perr.TraceID != "" {
			resp.TraceID = perr.TraceID
			w.Header().Set(HeaderTraceID, perr.TraceID)
		}
		s.logger.Warn().Err(err).Str("trace_id", resp.TraceID).Msg("Position source failed")
		WriteJSON(w, http.StatusBadGateway, resp)
		return
	}
	s.logger.Error().Err(err).Msg("Insights request failed")
	WriteErrorWithCode(w, http.StatusInternalServerError, err.Error(), "internal_error")
}

// hasBody reports whether the request carries a non-empty body.
func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	if r.ContentLength > 0 {
		return true
	}
	if r.ContentLength == 0 {
		return false
	}
	// Unknown length: peek one byte.
	buf := make([]byte, 1)
	n, _ := r.Body.Read(buf)
	if n == 0 {
		return false
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(strings.NewReader(string(buf[:n])), r.Body), r.Body}
	return true
}
