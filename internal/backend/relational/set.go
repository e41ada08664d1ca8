package relational

import (
	"context"
	"database/sql"
	"fmt"
)

// SetStore is a relational backend.SetStore: a single table of distinct
// string values, used by the restriction registry.
type SetStore struct {
	db    *sql.DB
	table string
}

// OpenSetStore connects to dsn and ensures the named table exists.
func OpenSetStore(ctx context.Context, dsn, table string) (*SetStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("relational set store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("relational set store: ping: %w", err)
	}
	s := &SetStore{db: db, table: table}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (value TEXT PRIMARY KEY)`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("relational set store: migrate: %w", err)
	}
	return s, nil
}

func (s *SetStore) Add(ctx context.Context, value string) error {
	q := fmt.Sprintf(`INSERT INTO %s (value) VALUES ($1) ON CONFLICT DO NOTHING`, s.table)
	_, err := s.db.ExecContext(ctx, q, value)
	if err != nil {
		return fmt.Errorf("relational set store: add: %w", err)
	}
	return nil
}

func (s *SetStore) Remove(ctx context.Context, value string) (bool, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE value = $1`, s.table)
	res, err := s.db.ExecContext(ctx, q, value)
	if err != nil {
		return false, fmt.Errorf("relational set store: remove: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SetStore) Contains(ctx context.Context, value string) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM %s WHERE value = $1`, s.table)
	var one int
	err := s.db.QueryRowContext(ctx, q, value).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("relational set store: contains: %w", err)
	}
	return true, nil
}

func (s *SetStore) List(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT value FROM %s`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("relational set store: list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SetStore) Clear(ctx context.Context) (int, error) {
	q := fmt.Sprintf(`DELETE FROM %s`, s.table)
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("relational set store: clear: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ReservedValues returns nil: the relational set store's table is
// independent of the messages table's keyspace.
func (s *SetStore) ReservedValues() []string { return nil }

func (s *SetStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("relational set store: ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SetStore) Close() error { return s.db.Close() }
