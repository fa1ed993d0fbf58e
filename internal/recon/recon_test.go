package recon

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/model"
)

// fakeGateway serves canned ledger state and records write calls.
type fakeGateway struct {
	ledger.Gateway

	sessions map[uint64]*ledger.SessionState
	laws     map[model.LawKey]*ledger.LawState
	tallies  map[model.LawKey]model.Tally

	lawErr      error
	tallyErr    error
	finalizeErr error
	finalized   []uint64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions: map[uint64]*ledger.SessionState{},
		laws:     map[model.LawKey]*ledger.LawState{},
		tallies:  map[model.LawKey]model.Tally{},
	}
}

func (g *fakeGateway) GetSession(ctx context.Context, id uint64) (*ledger.SessionState, error) {
	s, ok := g.sessions[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return s, nil
}

func (g *fakeGateway) GetLaw(ctx context.Context, sid, lid uint64) (*ledger.LawState, error) {
	if g.lawErr != nil {
		return nil, g.lawErr
	}
	l, ok := g.laws[model.LawKey{SessionID: sid, LedgerLawID: lid}]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return l, nil
}

func (g *fakeGateway) GetTally(ctx context.Context, sid, lid uint64) (model.Tally, error) {
	if g.tallyErr != nil {
		return model.Tally{}, g.tallyErr
	}
	return g.tallies[model.LawKey{SessionID: sid, LedgerLawID: lid}], nil
}

func (g *fakeGateway) FinalizeSession(ctx context.Context, id uint64) (*ledger.TxResult, error) {
	if g.finalizeErr != nil {
		return nil, g.finalizeErr
	}
	g.finalized = append(g.finalized, id)
	if s, ok := g.sessions[id]; ok {
		s.Active = false
		for key, l := range g.laws {
			if key.SessionID == id {
				l.Active = false
			}
		}
	}
	return &ledger.TxResult{TxHash: "0xfinal", BlockNumber: 99}, nil
}

// memStore is an in-memory store.Store covering what the service touches.
type memStore struct {
	mu       sync.Mutex
	sessions map[uint64]*model.Session
	laws     map[model.LawKey]*model.Law
	votes    []*model.Vote

	updateLawErr error
	deltaErr     error
	deltas       []model.TallyBucket
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[uint64]*model.Session{},
		laws:     map[model.LawKey]*model.Law{},
	}
}

func (m *memStore) CreateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error) {
	return nil, 0, nil
}

func (m *memStore) UpdateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) UpsertLaw(ctx context.Context, l *model.Law) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.laws[l.Key()]; ok {
		// Off-chain metadata survives an upsert.
		l.Author = existing.Author
		l.Party = existing.Party
		l.Category = existing.Category
		l.Tags = existing.Tags
		l.DocumentRefs = existing.DocumentRefs
	}
	cp := *l
	m.laws[l.Key()] = &cp
	return nil
}

func (m *memStore) GetLaw(ctx context.Context, key model.LawKey) (*model.Law, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.laws[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) ListLaws(ctx context.Context, f model.LawFilter) ([]*model.Law, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Law
	for _, l := range m.laws {
		if f.SessionID != nil && l.SessionID != *f.SessionID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memStore) UpdateLaw(ctx context.Context, l *model.Law) error {
	if m.updateLawErr != nil {
		return m.updateLawErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.laws[l.Key()]; !ok {
		return sql.ErrNoRows
	}
	cp := *l
	m.laws[l.Key()] = &cp
	return nil
}

func (m *memStore) ApplyTallyDelta(ctx context.Context, key model.LawKey, bucket model.TallyBucket) error {
	if m.deltaErr != nil {
		return m.deltaErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.laws[key]
	if !ok {
		return sql.ErrNoRows
	}
	switch bucket {
	case model.BucketFavor:
		l.Tally.Favor++
	case model.BucketContra:
		l.Tally.Contra++
	case model.BucketAbstentions:
		l.Tally.Abstentions++
	case model.BucketAbsent:
		l.Tally.Absent++
	}
	m.deltas = append(m.deltas, bucket)
	return nil
}

func (m *memStore) DeleteLaw(ctx context.Context, key model.LawKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.laws, key)
	return nil
}

func (m *memStore) RecordVote(ctx context.Context, v *model.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes = append(m.votes, v)
	return nil
}

func (m *memStore) ListVotes(ctx context.Context, key model.LawKey) ([]*model.Vote, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testService(gw *fakeGateway, st *memStore) *Service {
	return New(gw, st, &events.NoopPublisher{}, discardLogger())
}

func TestSyncLaw_CreatesProjectionRecord(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	key := model.LawKey{SessionID: 1, LedgerLawID: 0}
	gw.laws[key] = &ledger.LawState{SessionID: 1, LawID: 0, Title: "Transit Act", Active: true}
	gw.tallies[key] = model.Tally{Favor: 3, Contra: 1}

	law, err := testService(gw, st).SyncLaw(context.Background(), key)
	if err != nil {
		t.Fatalf("SyncLaw: %v", err)
	}
	if law.Title != "Transit Act" || law.Status != model.StatusInDebate {
		t.Errorf("unexpected law: %+v", law)
	}
	if law.Tally != (model.Tally{Favor: 3, Contra: 1}) {
		t.Errorf("unexpected tally: %+v", law.Tally)
	}
	if law.FinalStatus != model.FinalPending {
		t.Errorf("fresh law final status = %s", law.FinalStatus)
	}
}

func TestSyncLaw_PreservesMetadataAndFinalStatus(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	key := model.LawKey{SessionID: 1, LedgerLawID: 0}
	gw.laws[key] = &ledger.LawState{SessionID: 1, LawID: 0, Title: "Transit Act", Active: false}
	gw.tallies[key] = model.Tally{Favor: 5, Contra: 2}

	st.laws[key] = &model.Law{
		SessionID: 1, LedgerLawID: 0,
		Title:       "stale title",
		Author:      "Okafor",
		Category:    "transport",
		Status:      model.StatusFinalized,
		FinalStatus: model.FinalApproved,
	}

	law, err := testService(gw, st).SyncLaw(context.Background(), key)
	if err != nil {
		t.Fatalf("SyncLaw: %v", err)
	}
	if law.Title != "Transit Act" {
		t.Errorf("ledger title should overwrite stale copy, got %q", law.Title)
	}
	if law.FinalStatus != model.FinalApproved {
		t.Errorf("final status must be write-once, got %s", law.FinalStatus)
	}
	stored := st.laws[key]
	if stored.Author != "Okafor" || stored.Category != "transport" {
		t.Errorf("off-chain metadata clobbered: %+v", stored)
	}
}

func TestSyncLaw_Idempotent(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	key := model.LawKey{SessionID: 2, LedgerLawID: 1}
	gw.laws[key] = &ledger.LawState{SessionID: 2, LawID: 1, Title: "Housing Act", Active: true}
	gw.tallies[key] = model.Tally{Favor: 7}

	svc := testService(gw, st)
	first, err := svc.SyncLaw(context.Background(), key)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := svc.SyncLaw(context.Background(), key)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if first.Tally != second.Tally || first.Status != second.Status {
		t.Errorf("repeated sync diverged: %+v vs %+v", first, second)
	}
}

func TestSyncSession_SyncsAllLaws(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	gw.sessions[3] = &ledger.SessionState{ID: 3, Date: "2026-03-14", Active: true, LawCount: 2}
	for i := uint64(0); i < 2; i++ {
		key := model.LawKey{SessionID: 3, LedgerLawID: i}
		gw.laws[key] = &ledger.LawState{SessionID: 3, LawID: i, Title: "Law", Active: true}
		gw.tallies[key] = model.Tally{Favor: i}
	}

	session, err := testService(gw, st).SyncSession(context.Background(), 3)
	if err != nil {
		t.Fatalf("SyncSession: %v", err)
	}
	if session.LawCount != 2 || !session.Active {
		t.Errorf("unexpected session: %+v", session)
	}
	if len(st.laws) != 2 {
		t.Errorf("got %d projected laws, want 2", len(st.laws))
	}
}

func TestRebuildSession_PrunesLawsUnknownToLedger(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	gw.sessions[5] = &ledger.SessionState{ID: 5, Date: "2026-05-01", Active: true, LawCount: 1}
	key := model.LawKey{SessionID: 5, LedgerLawID: 0}
	gw.laws[key] = &ledger.LawState{SessionID: 5, LawID: 0, Title: "Housing Act", Active: true}

	// Projection carries a law the ledger never issued.
	ghost := model.LawKey{SessionID: 5, LedgerLawID: 7}
	st.laws[ghost] = &model.Law{SessionID: 5, LedgerLawID: 7, Title: "Ghost"}
	// And kept metadata on the real one.
	st.laws[key] = &model.Law{SessionID: 5, LedgerLawID: 0, Title: "stale", Author: "Okafor"}

	session, err := testService(gw, st).RebuildSession(context.Background(), 5)
	if err != nil {
		t.Fatalf("RebuildSession: %v", err)
	}
	if session.LawCount != 1 {
		t.Errorf("session law count = %d, want 1", session.LawCount)
	}
	if _, ok := st.laws[ghost]; ok {
		t.Error("ghost law survived rebuild")
	}
	if got := st.laws[key]; got.Title != "Housing Act" || got.Author != "Okafor" {
		t.Errorf("rebuilt law = %+v", got)
	}
}

func TestSyncSession_AbortsOnLedgerFailure(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	gw.sessions[4] = &ledger.SessionState{ID: 4, Date: "2026-04-01", Active: true, LawCount: 3}
	gw.lawErr = ledger.ErrNetworkTransient

	_, err := testService(gw, st).SyncSession(context.Background(), 4)
	if !errors.Is(err, ledger.ErrNetworkTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(st.laws) != 0 {
		t.Errorf("no laws should be projected after abort, got %d", len(st.laws))
	}
}

func TestApplyVoteDelta_BucketsByChoice(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	key := model.LawKey{SessionID: 1, LedgerLawID: 0}
	st.laws[key] = &model.Law{SessionID: 1, LedgerLawID: 0, Title: "Law"}

	svc := testService(gw, st)
	for _, c := range []model.Choice{model.ChoiceFavor, model.ChoiceAgainst, model.ChoiceAbstain, model.ChoiceAbsent} {
		if err := svc.ApplyVoteDelta(context.Background(), key, c); err != nil {
			t.Fatalf("ApplyVoteDelta(%s): %v", c, err)
		}
	}
	got := st.laws[key].Tally
	want := model.Tally{Favor: 1, Contra: 1, Abstentions: 1, Absent: 1}
	if got != want {
		t.Errorf("tally = %+v, want %+v", got, want)
	}
}

func TestApplyVoteDelta_PresentIsNoop(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	key := model.LawKey{SessionID: 1, LedgerLawID: 0}
	st.laws[key] = &model.Law{SessionID: 1, LedgerLawID: 0}

	if err := testService(gw, st).ApplyVoteDelta(context.Background(), key, model.ChoicePresent); err != nil {
		t.Fatalf("ApplyVoteDelta(present): %v", err)
	}
	if len(st.deltas) != 0 {
		t.Errorf("present should not touch the tally, applied %v", st.deltas)
	}
}

func TestApplyVoteDelta_PropagatesStoreError(t *testing.T) {
	gw := newFakeGateway()
	st := newMemStore()
	st.deltaErr = errors.New("connection reset")

	err := testService(gw, st).ApplyVoteDelta(context.Background(),
		model.LawKey{SessionID: 1, LedgerLawID: 0}, model.ChoiceFavor)
	if err == nil {
		t.Fatal("expected error from store")
	}
}
