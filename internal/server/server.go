// Package server exposes the reconciliation engine over an HTTP JSON API with
// a server-sent-events stream for live updates.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/parlatech/plenum/internal/attendance"
	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/identity"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/recon"
	"github.com/parlatech/plenum/internal/recorder"
	"github.com/parlatech/plenum/internal/registry"
	"github.com/parlatech/plenum/internal/store"
)

// Server wires the engine's services behind HTTP handlers.
type Server struct {
	registry   *registry.Registry
	recorder   *recorder.Recorder
	recon      *recon.Service
	store      store.Store
	gw         ledger.Gateway
	publisher  events.Publisher
	verifier   identity.Verifier
	attendance *attendance.Tracker
	sseHub     *sseHub
	logger     *slog.Logger
}

// WithIdentity configures an identity verifier used to attribute requests to
// actor profiles. Attribution only; vote authorization stays with the ledger.
func (s *Server) WithIdentity(v identity.Verifier) *Server {
	s.verifier = v
	return s
}

// New returns a Server backed by the given services.
func New(reg *registry.Registry, rec *recorder.Recorder, rc *recon.Service, st store.Store, gw ledger.Gateway, pub events.Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:   reg,
		recorder:   rec,
		recon:      rc,
		store:      st,
		gw:         gw,
		publisher:  pub,
		attendance: attendance.New(),
		sseHub:     newSSEHub(),
		logger:     logger,
	}
}

// publishAndBroadcast emits an event to NATS and to connected SSE clients.
// Best effort; failures are logged and never block the caller.
func (s *Server) publishAndBroadcast(ctx context.Context, topic string, event any) {
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, topic, event); err != nil {
			s.logger.Warn("failed to publish event", "topic", topic, "error", err)
		}
	}
	s.broadcastEvent(topic, event)
}

// RelayEvents forwards decoded ledger contract events to SSE clients until
// ctx is done. It lets browsers follow votes cast by other nodes, not just
// writes that went through this server.
func (s *Server) RelayEvents(ctx context.Context) (func(), error) {
	ch, cancel, err := s.gw.Subscribe(ctx,
		ledger.EventSessionCreated, ledger.EventLawAdded,
		ledger.EventVoteRegistered, ledger.EventSessionFinalized)
	if err != nil {
		return nil, err
	}
	go func() {
		for ev := range ch {
			switch ev.Kind {
			case ledger.EventVoteRegistered:
				s.attendance.RecordVote(ev.SessionID, ev.Voter, ev.Choice.String())
			case ledger.EventSessionFinalized:
				s.attendance.ClearSession(ev.SessionID)
			}
			topic := topicForEvent(ev.Kind)
			if topic == "" {
				continue
			}
			s.broadcastEvent(topic, ev)
		}
	}()
	return cancel, nil
}

func topicForEvent(kind ledger.EventKind) string {
	switch kind {
	case ledger.EventSessionCreated:
		return events.TopicSessionCreated
	case ledger.EventLawAdded:
		return events.TopicLawAdded
	case ledger.EventVoteRegistered:
		return events.TopicVoteRegistered
	case ledger.EventSessionFinalized:
		return events.TopicSessionFinalized
	}
	return ""
}

// broadcastEvent fans an event out to SSE clients.
func (s *Server) broadcastEvent(topic string, event any) {
	if s.sseHub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event for SSE broadcast", "topic", topic, "error", err)
		return
	}
	s.sseHub.broadcast(topic, payload)
}
