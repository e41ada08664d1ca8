// Package relational implements the relational backend.Backend over
// PostgreSQL via database/sql and github.com/lib/pq. One table keyed by
// an auto-increment id; ordinality is intrinsic.
package relational

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/model"
)

// Backend is the PostgreSQL-backed Backend implementation.
type Backend struct {
	db *sql.DB
}

// Open connects to dsn and ensures the messages table/indices exist.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("relational backend: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("relational backend: ping: %w", err)
	}
	b := &Backend{db: db}
	if err := b.migrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	uuid TEXT UNIQUE NOT NULL,
	sub_queue TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	payload BYTEA,
	assigned_to TEXT NOT NULL DEFAULT '',
	assignment_timestamp TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS messages_sub_queue_id_idx ON messages (sub_queue, id);
CREATE INDEX IF NOT EXISTS messages_assigned_to_idx ON messages (assigned_to);
`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("relational backend: migrate: %w", err)
	}
	return nil
}

func (b *Backend) OrdinalityPolicy() backend.OrdinalityPolicy { return backend.Intrinsic }

func (b *Backend) Append(ctx context.Context, record model.Message) (model.Message, error) {
	const q = `
INSERT INTO messages (uuid, sub_queue, content_type, payload, assigned_to, assignment_timestamp)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	row := b.db.QueryRowContext(ctx, q,
		record.UUID, record.SubQueue, record.Payload.ContentType, record.Payload.Data,
		record.AssignedTo, record.AssignmentTimestamp)
	if err := row.Scan(&record.ID); err != nil {
		return model.Message{}, fmt.Errorf("relational backend: insert: %w", err)
	}
	return record, nil
}

func (b *Backend) RemoveByUUID(ctx context.Context, uuid string) (int, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM messages WHERE uuid = $1`, uuid)
	if err != nil {
		return 0, fmt.Errorf("relational backend: delete: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *Backend) UpdateByUUID(ctx context.Context, uuid string, record model.Message) (bool, error) {
	const q = `
UPDATE messages
SET content_type = $1, payload = $2, assigned_to = $3, assignment_timestamp = $4
WHERE uuid = $5`
	res, err := b.db.ExecContext(ctx, q,
		record.Payload.ContentType, record.Payload.Data, record.AssignedTo, record.AssignmentTimestamp, uuid)
	if err != nil {
		return false, fmt.Errorf("relational backend: update: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (b *Backend) FindByUUID(ctx context.Context, uuid string) (model.Message, bool, error) {
	const q = `
SELECT id, uuid, sub_queue, content_type, payload, assigned_to, assignment_timestamp
FROM messages WHERE uuid = $1`
	m, err := scanOne(b.db.QueryRowContext(ctx, q, uuid))
	if err == sql.ErrNoRows {
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, fmt.Errorf("relational backend: find: %w", err)
	}
	return m, true, nil
}

func (b *Backend) FindSubQueueOf(ctx context.Context, uuid string) (string, bool, error) {
	var sq string
	err := b.db.QueryRowContext(ctx, `SELECT sub_queue FROM messages WHERE uuid = $1`, uuid).Scan(&sq)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("relational backend: find sub-queue: %w", err)
	}
	return sq, true, nil
}

func (b *Backend) IterateSubQueue(ctx context.Context, subQueue string, filter model.Filter) ([]model.Message, error) {
	q := `
SELECT id, uuid, sub_queue, content_type, payload, assigned_to, assignment_timestamp
FROM messages WHERE sub_queue = $1`
	args := []interface{}{subQueue}

	switch filter.Mode {
	case model.FilterAssigned:
		q += ` AND assigned_to <> ''`
	case model.FilterUnassigned:
		q += ` AND assigned_to = ''`
	case model.FilterAssignedTo:
		q += ` AND assigned_to = $2`
		args = append(args, filter.AssignedTo)
	}
	q += ` ORDER BY id ASC`

	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("relational backend: iterate: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("relational backend: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (b *Backend) MaxIDOf(ctx context.Context, subQueue string) (int64, bool, error) {
	var maxID sql.NullInt64
	err := b.db.QueryRowContext(ctx, `SELECT MAX(id) FROM messages WHERE sub_queue = $1`, subQueue).Scan(&maxID)
	if err != nil {
		return 0, false, fmt.Errorf("relational backend: max id: %w", err)
	}
	return maxID.Int64, maxID.Valid, nil
}

func (b *Backend) SizeOf(ctx context.Context, subQueue string) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE sub_queue = $1`, subQueue).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("relational backend: size: %w", err)
	}
	return n, nil
}

func (b *Backend) DistinctSubQueues(ctx context.Context) (map[string]struct{}, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT DISTINCT sub_queue FROM messages`)
	if err != nil {
		return nil, fmt.Errorf("relational backend: distinct: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var sq string
		if err := rows.Scan(&sq); err != nil {
			return nil, fmt.Errorf("relational backend: scan: %w", err)
		}
		out[sq] = struct{}{}
	}
	return out, rows.Err()
}

func (b *Backend) DeleteSubQueue(ctx context.Context, subQueue string) (int, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM messages WHERE sub_queue = $1`, subQueue)
	if err != nil {
		return 0, fmt.Errorf("relational backend: delete sub-queue: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *Backend) DeleteAll(ctx context.Context) (int, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("relational backend: delete all: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("relational backend: ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error { return b.db.Close() }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOne(row *sql.Row) (model.Message, error) {
	return scanRow(row)
}

func scanRow(row rowScanner) (model.Message, error) {
	var m model.Message
	var assignedTS sql.NullTime
	var assignedTo sql.NullString
	if err := row.Scan(&m.ID, &m.UUID, &m.SubQueue, &m.Payload.ContentType, &m.Payload.Data, &assignedTo, &assignedTS); err != nil {
		return model.Message{}, err
	}
	m.AssignedTo = assignedTo.String
	if assignedTS.Valid {
		t := assignedTS.Time
		m.AssignmentTimestamp = &t
	}
	return m, nil
}
