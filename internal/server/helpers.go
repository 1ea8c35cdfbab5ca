package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// ParamsFromQuery reads model, horizon_months and risk_profile from the query string.
// A malformed horizon writes a 400 and returns false. Missing values stay empty so the
// service defaults apply.
func ParamsFromQuery(w http.ResponseWriter, r *http.Request) (models.AnalysisParams, bool) {
	q := r.URL.Query()
	params := models.AnalysisParams{
		Model:       strings.TrimSpace(q.Get("model")),
		RiskProfile: strings.TrimSpace(q.Get("risk_profile")),
	}
	if raw := strings.TrimSpace(q.Get("horizon_months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "horizon_months must be an integer", "invalid_params")
			return params, false
		}
		params.HorizonMonths = n
	}
	return params, true
}
