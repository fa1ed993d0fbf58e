package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/model"
)

// castVoteInput is the vote request body. The choice is an action label
// ("favor", "against", "abstain", "present", "absent"). The signing key is
// accepted inline for trusted deployments where the server acts as a custodial
// signer; it is used once and never stored.
type castVoteInput struct {
	Choice     string `json:"choice"`
	PrivateKey string `json:"private_key"`
}

// handleCastVote handles POST /v1/sessions/{sid}/laws/{lid}/votes.
func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	key, ok := lawKey(w, r)
	if !ok {
		return
	}
	var in castVoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	choice, err := model.ParseChoice(in.Choice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.PrivateKey == "" {
		writeError(w, http.StatusBadRequest, "private_key is required")
		return
	}
	signer, err := ledger.SignerFromHex(in.PrivateKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid private key")
		return
	}

	vote, err := s.recorder.CastVote(r.Context(), signer, key.SessionID, key.LedgerLawID, choice)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.attendance.RecordVote(key.SessionID, vote.ActorAddress, vote.ChoiceLabel)
	s.broadcastEvent(events.TopicVoteRegistered, events.VoteRegistered{Vote: vote})
	writeJSON(w, http.StatusCreated, vote)
}

// handleAttendance handles GET /v1/sessions/{sid}/attendance. The roster is
// in-memory presentation state fed by confirmed votes; the votes table is the
// durable record.
func (s *Server) handleAttendance(w http.ResponseWriter, r *http.Request) {
	sid, ok := pathID(w, r, "sid")
	if !ok {
		return
	}
	var stale time.Duration
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			writeError(w, http.StatusBadRequest, "stale_threshold_secs must be a non-negative number")
			return
		}
		stale = time.Duration(secs) * time.Second
	}
	roster := s.attendance.Roster(sid, stale)
	writeJSON(w, http.StatusOK, map[string]any{
		"attendance": roster,
		"total":      len(roster),
	})
}

// handleListVotes handles GET /v1/sessions/{sid}/laws/{lid}/votes.
func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	key, ok := lawKey(w, r)
	if !ok {
		return
	}
	votes, err := s.registry.ListVotes(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list votes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"votes": orEmpty(votes),
		"total": len(votes),
	})
}

// handleEligibility handles GET /v1/legislators/{address}/eligibility.
func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	eligible, err := s.recorder.Eligible(r.Context(), address)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  address,
		"eligible": eligible,
	})
}
