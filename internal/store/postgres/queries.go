package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/parlatech/plenum/internal/model"
)

// lawColumns is the column list used for SELECT statements on the laws table.
const lawColumns = `session_id, ledger_law_id, title, description, author, party,
	category, status, final_status, tally_favor, tally_contra, tally_abstentions,
	tally_absent, active, tags, document_refs, created_at, updated_at`

// sessionColumns is the column list used for SELECT statements on the sessions table.
const sessionColumns = `id, date, description, active, law_count, created_at, updated_at, finalized_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateSession(ctx context.Context, db executor, s *model.Session) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, date, description, active, law_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		s.ID,
		s.Date,
		nullString(s.Description),
		s.Active,
		s.LawCount,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func queryGetSession(ctx context.Context, db executor, id uint64) (*model.Session, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func queryListSessions(ctx context.Context, db executor, limit, offset int) ([]*model.Session, int, error) {
	query := `SELECT COUNT(*) OVER() AS total_count, ` + sessionColumns + ` FROM sessions ORDER BY id DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	var total int
	for rows.Next() {
		s, t, err := scanSessionWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sessions: %w", err)
		}
		total = t
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan sessions: %w", err)
	}

	return sessions, total, nil
}

func queryUpdateSession(ctx context.Context, db executor, s *model.Session) error {
	return db.QueryRowContext(ctx, `
		UPDATE sessions SET
			date = $2,
			description = $3,
			active = $4,
			law_count = $5,
			finalized_at = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID,
		s.Date,
		nullString(s.Description),
		s.Active,
		s.LawCount,
		nullTimePtr(s.FinalizedAt),
	).Scan(&s.UpdatedAt)
}

// queryUpsertLaw writes the ledger-owned fields of a law. On conflict the
// off-chain metadata columns (author, party, category, tags, document_refs)
// are left untouched so a resync never clobbers curation done locally.
func queryUpsertLaw(ctx context.Context, db executor, l *model.Law) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO laws (
			session_id, ledger_law_id, title, description, author, party,
			category, status, final_status, tally_favor, tally_contra,
			tally_abstentions, tally_absent, active, tags, document_refs
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16
		)
		ON CONFLICT (session_id, ledger_law_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			final_status = EXCLUDED.final_status,
			tally_favor = EXCLUDED.tally_favor,
			tally_contra = EXCLUDED.tally_contra,
			tally_abstentions = EXCLUDED.tally_abstentions,
			tally_absent = EXCLUDED.tally_absent,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		l.SessionID,
		l.LedgerLawID,
		l.Title,
		nullString(l.Description),
		nullString(l.Author),
		nullString(l.Party),
		nullString(l.Category),
		string(l.Status),
		string(l.FinalStatus),
		l.Tally.Favor,
		l.Tally.Contra,
		l.Tally.Abstentions,
		l.Tally.Absent,
		l.Active,
		tagsArray(l.Tags),
		jsonbBytes(l.DocumentRefs),
	).Scan(&l.CreatedAt, &l.UpdatedAt)
}

func queryGetLaw(ctx context.Context, db executor, key model.LawKey) (*model.Law, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+lawColumns+` FROM laws
		WHERE session_id = $1 AND ledger_law_id = $2`,
		key.SessionID, key.LedgerLawID,
	)
	return scanLaw(row)
}

func queryListLaws(ctx context.Context, db executor, filter model.LawFilter) ([]*model.Law, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.SessionID != nil {
		whereClauses = append(whereClauses, "session_id = "+nextArg())
		args = append(args, *filter.SessionID)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.FinalStatus) > 0 {
		placeholders := make([]string, len(filter.FinalStatus))
		for i, s := range filter.FinalStatus {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "final_status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(filter.Category) > 0 {
		placeholders := make([]string, len(filter.Category))
		for i, c := range filter.Category {
			placeholders[i] = nextArg()
			args = append(args, c)
		}
		whereClauses = append(whereClauses, "category IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.Author != "" {
		p := nextArg()
		whereClauses = append(whereClauses, "author ILIKE '%' || "+p+" || '%'")
		args = append(args, filter.Author)
	}

	if filter.Active != nil {
		whereClauses = append(whereClauses, "active = "+nextArg())
		args = append(args, *filter.Active)
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%' OR array_to_string(tags, ' ') ILIKE '%%' || %s || '%%')", p, p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + lawColumns + " FROM laws" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list laws: %w", err)
	}
	defer rows.Close()

	var laws []*model.Law
	var total int
	for rows.Next() {
		l, t, err := scanLawWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan laws: %w", err)
		}
		total = t
		laws = append(laws, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan laws: %w", err)
	}

	return laws, total, nil
}

func queryUpdateLaw(ctx context.Context, db executor, l *model.Law) error {
	return db.QueryRowContext(ctx, `
		UPDATE laws SET
			title = $3,
			description = $4,
			author = $5,
			party = $6,
			category = $7,
			status = $8,
			final_status = $9,
			tally_favor = $10,
			tally_contra = $11,
			tally_abstentions = $12,
			tally_absent = $13,
			active = $14,
			tags = $15,
			document_refs = $16,
			updated_at = NOW()
		WHERE session_id = $1 AND ledger_law_id = $2
		RETURNING updated_at`,
		l.SessionID,
		l.LedgerLawID,
		l.Title,
		nullString(l.Description),
		nullString(l.Author),
		nullString(l.Party),
		nullString(l.Category),
		string(l.Status),
		string(l.FinalStatus),
		l.Tally.Favor,
		l.Tally.Contra,
		l.Tally.Abstentions,
		l.Tally.Absent,
		l.Active,
		tagsArray(l.Tags),
		jsonbBytes(l.DocumentRefs),
	).Scan(&l.UpdatedAt)
}

// tallyColumns maps tally buckets to their column names. Acts as an allowlist:
// the bucket value is interpolated into SQL, so only known buckets pass.
var tallyColumns = map[model.TallyBucket]string{
	model.BucketFavor:       "tally_favor",
	model.BucketContra:      "tally_contra",
	model.BucketAbstentions: "tally_abstentions",
	model.BucketAbsent:      "tally_absent",
}

// queryApplyTallyDelta increments a single tally counter in one statement.
// This is the optimistic fast path after a confirmed vote; a full resync
// overwrites whatever it produces.
func queryApplyTallyDelta(ctx context.Context, db executor, key model.LawKey, bucket model.TallyBucket) error {
	col, ok := tallyColumns[bucket]
	if !ok {
		return fmt.Errorf("unknown tally bucket %q", bucket)
	}
	res, err := db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE laws SET %s = %s + 1, updated_at = NOW()
		WHERE session_id = $1 AND ledger_law_id = $2`, col, col),
		key.SessionID, key.LedgerLawID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryDeleteLaw(ctx context.Context, db executor, key model.LawKey) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM laws WHERE session_id = $1 AND ledger_law_id = $2`,
		key.SessionID, key.LedgerLawID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// queryRecordVote inserts a confirmed vote into the audit trail. The ledger
// rejects duplicate votes before they ever reach this point, so a conflicting
// row can only come from a replayed sync and is ignored.
func queryRecordVote(ctx context.Context, db executor, v *model.Vote) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO votes (session_id, ledger_law_id, actor_address, choice, tx_ref, block_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, ledger_law_id, actor_address) DO NOTHING`,
		v.SessionID,
		v.LedgerLawID,
		v.ActorAddress,
		uint8(v.Choice),
		v.TxRef,
		v.BlockNumber,
	)
	return err
}

func queryListVotes(ctx context.Context, db executor, key model.LawKey) ([]*model.Vote, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, ledger_law_id, actor_address, choice, tx_ref, block_number, created_at
		FROM votes
		WHERE session_id = $1 AND ledger_law_id = $2
		ORDER BY created_at ASC`,
		key.SessionID, key.LedgerLawID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVotes(rows)
}

func parseSortClause(sort string) string {
	if sort == "" {
		return "updated_at DESC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"created_at": true, "updated_at": true, "title": true,
		"status": true, "final_status": true, "session_id": true,
		"ledger_law_id": true, "category": true,
	}
	if !allowed[col] {
		return "updated_at DESC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
