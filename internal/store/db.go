package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed-width so that lexical order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// connParams are applied by the driver to every pooled connection.
// Write transactions begin IMMEDIATE so that concurrent writers queue on
// busy_timeout instead of failing on lock upgrade.
var connParams = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
}

// OpenDB opens the SQLite database at path. A file database gets a pool of
// connections so readers proceed while a write is in flight. An in-memory
// database exists only on the connection that created it, so its pool is
// limited to one.
func OpenDB(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+strings.Join(connParams, "&"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ops holds the statements shared by Store (autocommit reads) and Tx.
type ops struct {
	r runner
}

type Store struct {
	ops
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{ops: ops{r: db}, db: db, log: log}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a unit of work. All statements run on the same transaction and are
// committed or rolled back together by Store.InTx.
type Tx struct {
	ops
}

// InTx runs fn inside a write transaction. The transaction commits only if
// fn returns nil; any error or panic rolls back everything fn wrote.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.runTx(ctx, nil, fn)
}

// ReadTx runs fn inside a read-only transaction, giving it one consistent
// snapshot without taking the write lock.
func (s *Store) ReadTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.runTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) runTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := sqlTx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.log.Warn("rollback failed", zap.Error(err))
		}
	}()

	if err := fn(&Tx{ops: ops{r: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// builder returns a squirrel statement builder using SQLite placeholders.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (o ops) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql: %w", err)
	}
	return o.r.ExecContext(ctx, query, args...)
}

func (o ops) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql: %w", err)
	}
	return o.r.QueryContext(ctx, query, args...)
}

func (o ops) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql: %w", err)
	}
	return o.r.QueryRowContext(ctx, query, args...), nil
}
