package snapshot

import (
	"context"
	"database/sql"
	"sync"

	"github.com/parlatech/plenum/internal/model"
)

// mockStore is an in-memory store.Store for snapshot tests.
type mockStore struct {
	mu       sync.Mutex
	sessions map[uint64]*model.Session
	laws     map[model.LawKey]*model.Law
	votes    map[model.LawKey][]*model.Vote
}

func newMockStore() *mockStore {
	return &mockStore{
		sessions: map[uint64]*model.Session{},
		laws:     map[model.LawKey]*model.Law{},
		votes:    map[model.LawKey][]*model.Vote{},
	}
}

func (m *mockStore) CreateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockStore) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockStore) ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Session
	for _, s := range m.sessions {
		cp := *s
		all = append(all, &cp)
	}
	return page(all, limit, offset), len(all), nil
}

func (m *mockStore) UpdateSession(ctx context.Context, s *model.Session) error {
	return m.CreateSession(ctx, s)
}

func (m *mockStore) UpsertLaw(ctx context.Context, l *model.Law) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.laws[l.Key()] = &cp
	return nil
}

func (m *mockStore) GetLaw(ctx context.Context, key model.LawKey) (*model.Law, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.laws[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *l
	return &cp, nil
}

func (m *mockStore) ListLaws(ctx context.Context, f model.LawFilter) ([]*model.Law, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Law
	for _, l := range m.laws {
		if f.SessionID != nil && l.SessionID != *f.SessionID {
			continue
		}
		cp := *l
		all = append(all, &cp)
	}
	return page(all, f.Limit, f.Offset), len(all), nil
}

func (m *mockStore) UpdateLaw(ctx context.Context, l *model.Law) error {
	return m.UpsertLaw(ctx, l)
}

func (m *mockStore) ApplyTallyDelta(ctx context.Context, key model.LawKey, bucket model.TallyBucket) error {
	return nil
}

func (m *mockStore) DeleteLaw(ctx context.Context, key model.LawKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.laws, key)
	return nil
}

func (m *mockStore) RecordVote(ctx context.Context, v *model.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.LawKey{SessionID: v.SessionID, LedgerLawID: v.LedgerLawID}
	cp := *v
	m.votes[key] = append(m.votes[key], &cp)
	return nil
}

func (m *mockStore) ListVotes(ctx context.Context, key model.LawKey) ([]*model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Vote(nil), m.votes[key]...), nil
}

func (m *mockStore) Close() error { return nil }

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
