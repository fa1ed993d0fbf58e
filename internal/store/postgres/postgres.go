// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *model.Session) error {
	return queryCreateSession(ctx, s.db, session)
}

func (s *PostgresStore) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
	return queryGetSession(ctx, s.db, id)
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error) {
	return queryListSessions(ctx, s.db, limit, offset)
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session *model.Session) error {
	return queryUpdateSession(ctx, s.db, session)
}

func (s *PostgresStore) UpsertLaw(ctx context.Context, law *model.Law) error {
	return queryUpsertLaw(ctx, s.db, law)
}

func (s *PostgresStore) GetLaw(ctx context.Context, key model.LawKey) (*model.Law, error) {
	return queryGetLaw(ctx, s.db, key)
}

func (s *PostgresStore) ListLaws(ctx context.Context, filter model.LawFilter) ([]*model.Law, int, error) {
	return queryListLaws(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateLaw(ctx context.Context, law *model.Law) error {
	return queryUpdateLaw(ctx, s.db, law)
}

func (s *PostgresStore) ApplyTallyDelta(ctx context.Context, key model.LawKey, bucket model.TallyBucket) error {
	return queryApplyTallyDelta(ctx, s.db, key, bucket)
}

func (s *PostgresStore) DeleteLaw(ctx context.Context, key model.LawKey) error {
	return queryDeleteLaw(ctx, s.db, key)
}

func (s *PostgresStore) RecordVote(ctx context.Context, vote *model.Vote) error {
	return queryRecordVote(ctx, s.db, vote)
}

func (s *PostgresStore) ListVotes(ctx context.Context, key model.LawKey) ([]*model.Vote, error) {
	return queryListVotes(ctx, s.db, key)
}
