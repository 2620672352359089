package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type scanFunc func(dest ...any) error

type simpleRow struct {
	scan scanFunc
	err  error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubRows struct {
	scans []scanFunc
	idx   int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.scans) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return r.scans[r.idx-1](dest...)
}

type call struct {
	query string
	args  []any
}

// stubExecutor replays queued rows and records every statement.
type stubExecutor struct {
	calls    []call
	rows     []pgx.Row
	query    *stubRows
	affected int64
	execErr  error
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query, args})
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", s.affected)), nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query, args})
	if len(s.rows) == 0 {
		return simpleRow{}
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query, args})
	if s.query == nil {
		return nil, errors.New("no rows queued")
	}
	return s.query, nil
}

func intRow(v int) simpleRow {
	return simpleRow{scan: func(dest ...any) error {
		*(dest[0].(*int)) = v
		return nil
	}}
}

func transformScan(id, providerJobID, status string) scanFunc {
	return func(dest ...any) error {
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		values := []any{id, "user-1", "image", "snow-white", providerJobID, status, "", "", "https://cdn/x.jpg", "", "", 1, now, now}
		for i, v := range values {
			switch d := dest[i].(type) {
			case *string:
				*d = v.(string)
			case *int:
				*d = v.(int)
			case *time.Time:
				*d = v.(time.Time)
			default:
				return fmt.Errorf("unexpected dest %T", d)
			}
		}
		return nil
	}
}
