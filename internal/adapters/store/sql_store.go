// Package store persists records into one append-only SQL table.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

const openTimeout = 10 * time.Second

// SQLStore implements ports.RecordStore on SQLite or PostgreSQL.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	table   string
	layout  domain.Layout

	// orderable holds every column a listing may be ordered by.
	orderable  map[string]bool
	selectCols string
	writeMu    sync.Mutex
}

// Open connects to the configured database, verifies the connection and
// creates the record table if needed.
func Open(ctx context.Context, cfg Config, layout domain.Layout) (*SQLStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := dialects[cfg.Driver]

	dsn := cfg.DSN
	memory := false
	if d.name == DriverSQLite {
		dsn, memory = sqliteDSN(cfg)
		if !memory && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o750); err != nil {
				return nil, &domain.PersistenceError{Op: "open", Err: err}
			}
		}
	}

	db, err := sqlx.Open(d.driverName, dsn)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Err: err}
	}
	if memory {
		// Every connection to :memory: is a separate database, so the one
		// connection must never be recycled.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpen)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &domain.PersistenceError{Op: "open", Err: err}
	}

	s, err := New(db, cfg.Table, layout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(cfg Config) (string, bool) {
	if cfg.DSN == ":memory:" {
		return cfg.DSN, true
	}
	if strings.HasPrefix(cfg.DSN, "file:") {
		return cfg.DSN, strings.Contains(cfg.DSN, "mode=memory")
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.DSN, cfg.BusyTimeout.Milliseconds()), false
}

// New wraps an open handle. The dialect is taken from the handle's driver
// name. The schema is not touched.
func New(db *sqlx.DB, table string, layout domain.Layout) (*SQLStore, error) {
	d, ok := dialectFor(db.DriverName())
	if !ok {
		return nil, domain.Configf("store.driver", "unsupported driver %q", db.DriverName())
	}
	if !domain.ValidIdentifier(table) {
		return nil, domain.Configf("store.table", "%q is not a valid table name", table)
	}

	cols := append([]string{
		domain.ColumnID,
		domain.ColumnCapturedAt,
		domain.ColumnDate,
		domain.ColumnTime,
		domain.ColumnBatchID,
	}, layout.Columns()...)

	orderable := make(map[string]bool, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		orderable[c] = true
		quoted[i] = quote(c)
	}

	return &SQLStore{
		db:         db,
		dialect:    d,
		table:      table,
		layout:     layout,
		orderable:  orderable,
		selectCols: strings.Join(quoted, ", "),
	}, nil
}

func (s *SQLStore) Name() string { return s.dialect.name }

// DB exposes the underlying handle for health checks and tests.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

// EnsureSchema creates the record table and its batch index if absent.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quote(s.table))
	b.WriteString(" (")
	fmt.Fprintf(&b, "%s %s, ", quote(domain.ColumnID), s.dialect.idType)
	fmt.Fprintf(&b, "%s %s NOT NULL, ", quote(domain.ColumnCapturedAt), s.dialect.timeType)
	fmt.Fprintf(&b, "%s TEXT NOT NULL, ", quote(domain.ColumnDate))
	fmt.Fprintf(&b, "%s TEXT NOT NULL, ", quote(domain.ColumnTime))
	fmt.Fprintf(&b, "%s TEXT NOT NULL", quote(domain.ColumnBatchID))
	for _, f := range s.layout.Flags {
		fmt.Fprintf(&b, ", %s INTEGER NOT NULL DEFAULT 0", quote(f.Name))
	}
	for _, f := range s.layout.Fields {
		fmt.Fprintf(&b, ", %s %s", quote(f.Name), s.dialect.realType)
	}
	b.WriteString(")")

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
		return &domain.PersistenceError{Op: "create table", Err: err}
	}
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quote("idx_"+s.table+"_batch_id"), quote(s.table), quote(domain.ColumnBatchID))
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return &domain.PersistenceError{Op: "create index", Err: err}
	}
	return nil
}

// Insert appends rec in one statement and returns the assigned id. Flags
// absent from rec are stored as 0 and absent values as NULL.
func (s *SQLStore) Insert(ctx context.Context, rec domain.Record) (int64, error) {
	cols := []string{
		quote(domain.ColumnCapturedAt),
		quote(domain.ColumnDate),
		quote(domain.ColumnTime),
		quote(domain.ColumnBatchID),
	}
	args := []any{rec.CapturedAt.UTC(), rec.Date, rec.Time, rec.BatchID}
	for _, f := range s.layout.Flags {
		cols = append(cols, quote(f.Name))
		if rec.Flags[f.Name] {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	for _, f := range s.layout.Fields {
		cols = append(cols, quote(f.Name))
		if v, ok := rec.Values[f.Name]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quote(s.table))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "))
	b.WriteString(") RETURNING ")
	b.WriteString(quote(domain.ColumnID))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var id int64
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(b.String()), args...).Scan(&id); err != nil {
		return 0, &domain.PersistenceError{Op: "insert", Err: err}
	}
	return id, nil
}

// ListPage returns one page of matching records. Unknown order keys fall
// back to id; ties always break on id in the requested direction.
func (s *SQLStore) ListPage(ctx context.Context, p ports.Page) ([]domain.Record, error) {
	where, args := s.where(p.Filter)

	order := p.OrderBy
	if !s.orderable[order] {
		order = domain.ColumnID
	}
	dir := "ASC"
	if p.Descending {
		dir = "DESC"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s ORDER BY %s %s", s.selectCols, quote(s.table), where, quote(order), dir)
	if order != domain.ColumnID {
		fmt.Fprintf(&b, ", %s %s", quote(domain.ColumnID), dir)
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	switch {
	case p.Limit > 0:
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, p.Limit, offset)
	case offset > 0:
		b.WriteString(s.dialect.offsetOnly)
		args = append(args, offset)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(b.String()), args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, &domain.PersistenceError{Op: "list", Err: err}
		}
		rec, err := s.fromRow(m)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

// Count returns how many records match f.
func (s *SQLStore) Count(ctx context.Context, f ports.Filter) (int, error) {
	where, args := s.where(f)
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quote(s.table), where)

	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), args...); err != nil {
		return 0, &domain.PersistenceError{Op: "count", Err: err}
	}
	return n, nil
}

// DeleteWhere removes the records matching f. An empty filter deletes
// nothing; use DeleteAll to clear the table.
func (s *SQLStore) DeleteWhere(ctx context.Context, f ports.Filter) (int64, error) {
	if f.Empty() {
		return 0, nil
	}
	where, args := s.where(f)
	return s.delete(ctx, "delete", fmt.Sprintf("DELETE FROM %s%s", quote(s.table), where), args)
}

func (s *SQLStore) DeleteAll(ctx context.Context) (int64, error) {
	return s.delete(ctx, "delete all", fmt.Sprintf("DELETE FROM %s", quote(s.table)), nil)
}

func (s *SQLStore) delete(ctx context.Context, op, q string, args []any) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return 0, &domain.PersistenceError{Op: op, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.PersistenceError{Op: op, Err: err}
	}
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) where(f ports.Filter) (string, []any) {
	if f.Empty() {
		return "", nil
	}
	return fmt.Sprintf(" WHERE %s = ?", quote(domain.ColumnBatchID)), []any{f.BatchID}
}

var _ ports.RecordStore = (*SQLStore)(nil)
