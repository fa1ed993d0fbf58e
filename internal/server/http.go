package server

import (
	"encoding/json"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /v1/sessions/active", s.handleActiveSession)
	mux.HandleFunc("GET /v1/sessions/{sid}", s.handleGetSession)
	mux.HandleFunc("POST /v1/sessions/{sid}/finalize", s.handleFinalizeSession)
	mux.HandleFunc("POST /v1/sessions/{sid}/sync", s.handleSyncSession)
	mux.HandleFunc("POST /v1/sessions/{sid}/rebuild", s.handleRebuildSession)
	mux.HandleFunc("POST /v1/sessions/{sid}/laws", s.handleAddLaw)
	mux.HandleFunc("GET /v1/sessions/{sid}/laws/{lid}", s.handleGetLaw)
	mux.HandleFunc("PATCH /v1/sessions/{sid}/laws/{lid}", s.handleUpdateLawMetadata)
	mux.HandleFunc("POST /v1/sessions/{sid}/laws/{lid}/sync", s.handleSyncLaw)
	mux.HandleFunc("POST /v1/sessions/{sid}/laws/{lid}/votes", s.handleCastVote)
	mux.HandleFunc("GET /v1/sessions/{sid}/laws/{lid}/votes", s.handleListVotes)
	mux.HandleFunc("GET /v1/sessions/{sid}/attendance", s.handleAttendance)
	mux.HandleFunc("GET /v1/laws", s.handleListLaws)
	mux.HandleFunc("GET /v1/legislators/{address}/eligibility", s.handleEligibility)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	var h http.Handler = RecoveryMiddleware(s.logger, mux)
	h = LoggingMiddleware(s.logger, h)
	h = IdentityMiddleware(s.verifier, s.logger, h)
	return AuthMiddleware(authToken, h)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
