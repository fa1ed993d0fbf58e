package postgres

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/parlatech/plenum/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanLaw scans a single row into a model.Law.
// The row must contain columns in the order defined by lawColumns.
func scanLaw(row scannable) (*model.Law, error) {
	var l model.Law
	var (
		description  sql.NullString
		author       sql.NullString
		party        sql.NullString
		category     sql.NullString
		tags         pq.StringArray
		documentRefs []byte
	)

	err := row.Scan(
		&l.SessionID,
		&l.LedgerLawID,
		&l.Title,
		&description,
		&author,
		&party,
		&category,
		&l.Status,
		&l.FinalStatus,
		&l.Tally.Favor,
		&l.Tally.Contra,
		&l.Tally.Abstentions,
		&l.Tally.Absent,
		&l.Active,
		&tags,
		&documentRefs,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Description = description.String
	l.Author = author.String
	l.Party = party.String
	l.Category = category.String
	l.Tags = []string(tags)
	if len(documentRefs) > 0 {
		l.DocumentRefs = json.RawMessage(documentRefs)
	}

	return &l, nil
}

// scanLawWithTotal scans a row that has a leading total_count column followed
// by the standard law columns. Used by queryListLaws with COUNT(*) OVER().
func scanLawWithTotal(row scannable) (*model.Law, int, error) {
	var total int
	var l model.Law
	var (
		description  sql.NullString
		author       sql.NullString
		party        sql.NullString
		category     sql.NullString
		tags         pq.StringArray
		documentRefs []byte
	)

	err := row.Scan(
		&total,
		&l.SessionID,
		&l.LedgerLawID,
		&l.Title,
		&description,
		&author,
		&party,
		&category,
		&l.Status,
		&l.FinalStatus,
		&l.Tally.Favor,
		&l.Tally.Contra,
		&l.Tally.Abstentions,
		&l.Tally.Absent,
		&l.Active,
		&tags,
		&documentRefs,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, 0, err
	}

	l.Description = description.String
	l.Author = author.String
	l.Party = party.String
	l.Category = category.String
	l.Tags = []string(tags)
	if len(documentRefs) > 0 {
		l.DocumentRefs = json.RawMessage(documentRefs)
	}

	return &l, total, nil
}

// scanSession scans a single row into a model.Session.
func scanSession(row scannable) (*model.Session, error) {
	var s model.Session
	var (
		description sql.NullString
		finalizedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.Date,
		&description,
		&s.Active,
		&s.LawCount,
		&s.CreatedAt,
		&s.UpdatedAt,
		&finalizedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Description = description.String
	if finalizedAt.Valid {
		t := finalizedAt.Time
		s.FinalizedAt = &t
	}
	return &s, nil
}

// scanSessionWithTotal scans a row with a leading total_count column followed
// by the standard session columns.
func scanSessionWithTotal(row scannable) (*model.Session, int, error) {
	var total int
	var s model.Session
	var (
		description sql.NullString
		finalizedAt sql.NullTime
	)
	err := row.Scan(
		&total,
		&s.ID,
		&s.Date,
		&description,
		&s.Active,
		&s.LawCount,
		&s.CreatedAt,
		&s.UpdatedAt,
		&finalizedAt,
	)
	if err != nil {
		return nil, 0, err
	}
	s.Description = description.String
	if finalizedAt.Valid {
		t := finalizedAt.Time
		s.FinalizedAt = &t
	}
	return &s, total, nil
}

// scanVote scans a single row into a model.Vote and fills in the choice label.
func scanVote(row scannable) (*model.Vote, error) {
	var v model.Vote
	var choice uint8
	err := row.Scan(
		&v.SessionID,
		&v.LedgerLawID,
		&v.ActorAddress,
		&choice,
		&v.TxRef,
		&v.BlockNumber,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Choice = model.Choice(choice)
	v.ChoiceLabel = v.Choice.String()
	return &v, nil
}

// scanVotes scans multiple rows into a slice of model.Vote pointers.
func scanVotes(rows *sql.Rows) ([]*model.Vote, error) {
	var votes []*model.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return votes, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// tagsArray converts a tag slice to a driver value for a text[] column;
// an empty slice is stored as NULL.
func tagsArray(tags []string) driver.Valuer {
	if len(tags) == 0 {
		return pq.StringArray(nil)
	}
	return pq.StringArray(tags)
}
