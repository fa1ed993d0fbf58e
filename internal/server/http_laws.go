package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/registry"
)

// handleAddLaw handles POST /v1/sessions/{sid}/laws.
func (s *Server) handleAddLaw(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	var in registry.AddLawInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	law, err := s.registry.AddLaw(r.Context(), sid, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, law)
}

// handleGetLaw handles GET /v1/sessions/{sid}/laws/{lid}.
func (s *Server) handleGetLaw(w http.ResponseWriter, r *http.Request) {
	key, ok := lawKey(w, r)
	if !ok {
		return
	}
	law, err := s.registry.GetLaw(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, law)
}

// handleUpdateLawMetadata handles PATCH /v1/sessions/{sid}/laws/{lid}.
// Only projection-owned metadata can change; ledger fields are read-only here.
func (s *Server) handleUpdateLawMetadata(w http.ResponseWriter, r *http.Request) {
	key, ok := lawKey(w, r)
	if !ok {
		return
	}
	var in registry.AddLawInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	law, err := s.registry.UpdateLawMetadata(r.Context(), key, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, law)
}

// handleSyncLaw handles POST /v1/sessions/{sid}/laws/{lid}/sync.
func (s *Server) handleSyncLaw(w http.ResponseWriter, r *http.Request) {
	key, ok := lawKey(w, r)
	if !ok {
		return
	}
	law, err := s.recon.SyncLaw(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, law)
}

// handleListLaws handles GET /v1/laws.
func (s *Server) handleListLaws(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.LawFilter{
		Author: q.Get("author"),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}

	if v := q.Get("session_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			filter.SessionID = &n
		}
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.LawStatus(st))
		}
	}
	if v := q.Get("final_status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.FinalStatus = append(filter.FinalStatus, model.FinalStatus(st))
		}
	}
	if v := q.Get("category"); v != "" {
		filter.Category = strings.Split(v, ",")
	}
	if v := q.Get("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}
	filter.Limit, filter.Offset = parsePage(r, 50)

	laws, total, err := s.registry.ListLaws(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list laws")
		return
	}

	totalPages := 0
	currentPage := 1
	if filter.Limit > 0 {
		totalPages = (total + filter.Limit - 1) / filter.Limit
		currentPage = filter.Offset/filter.Limit + 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"laws":         orEmpty(laws),
		"total":        total,
		"total_pages":  totalPages,
		"current_page": currentPage,
	})
}

// lawKey parses the {sid}/{lid} path pair.
func lawKey(w http.ResponseWriter, r *http.Request) (model.LawKey, bool) {
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return model.LawKey{}, false
	}
	lid, err := strconv.ParseUint(r.PathValue("lid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lid must be a number")
		return model.LawKey{}, false
	}
	return model.LawKey{SessionID: sid, LedgerLawID: lid}, true
}
