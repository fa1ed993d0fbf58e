package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// handleCreateSession handles POST /v1/sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Date        string `json:"date"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session, err := s.registry.CreateSession(r.Context(), in.Date, in.Description)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// handleListSessions handles GET /v1/sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r, 50)
	sessions, total, err := s.registry.ListSessions(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": orEmpty(sessions),
		"total":    total,
	})
}

// handleActiveSession handles GET /v1/sessions/active.
func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.registry.ActiveSession(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleGetSession handles GET /v1/sessions/{sid}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	session, err := s.registry.GetSession(r.Context(), sid)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleFinalizeSession handles POST /v1/sessions/{sid}/finalize.
func (s *Server) handleFinalizeSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	report, err := s.recon.FinalizeSession(r.Context(), sid)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.registry.Invalidate()
	s.attendance.ClearSession(sid)
	writeJSON(w, http.StatusOK, report)
}

// handleSyncSession handles POST /v1/sessions/{sid}/sync.
func (s *Server) handleSyncSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	session, err := s.recon.SyncSession(r.Context(), sid)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleRebuildSession handles POST /v1/sessions/{sid}/rebuild.
func (s *Server) handleRebuildSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	session, err := s.recon.RebuildSession(r.Context(), sid)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// pathID parses a numeric path segment, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be a number")
		return 0, false
	}
	return v, true
}

// parsePage reads limit/offset query params with a default page size.
func parsePage(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// orEmpty ensures a nil slice marshals as [] instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
