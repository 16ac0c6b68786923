// Package sqlite implements the local storage on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
	"github.com/d1vanov/quentier-sub007/internal/logger"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Storage provides SQLite-backed local storage.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger

	tags      *tags
	notebooks *notebooks
}

var _ localstorage.Storage = (*Storage)(nil)

// Open creates a new SQLite storage at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, log *slog.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if path == MemoryPath {
		// Every connection to :memory: gets its own database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	// Run schema migration.
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	s := &Storage{
		db:     db,
		logger: logger.OrDiscard(log),
	}
	s.tags = &tags{db: db}
	s.notebooks = &notebooks{db: db}

	s.logger.Info("SQLite database opened successfully", "path", path)
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Tags returns the tag records.
func (s *Storage) Tags() localstorage.EntityStore[domain.Tag] { return s.tags }

// Notebooks returns the notebook records.
func (s *Storage) Notebooks() localstorage.EntityStore[domain.Notebook] { return s.notebooks }

// withTx runs fn in a transaction, committing when it returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// listClause renders the WHERE, ORDER BY and LIMIT parts of a listing.
func listClause(opts backend.ListOptions) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)

	switch opts.Scope {
	case backend.ScopeUserOwn:
		b.WriteString(" WHERE linked_notebook_guid = ''")
	case backend.ScopeLinkedNotebook:
		if opts.LinkedNotebookGUID == "" {
			b.WriteString(" WHERE linked_notebook_guid <> ''")
		} else {
			b.WriteString(" WHERE linked_notebook_guid = ?")
			args = append(args, opts.LinkedNotebookGUID)
		}
	}

	dir := "ASC"
	if opts.Direction == backend.Descending {
		dir = "DESC"
	}
	order := "name COLLATE NOCASE"
	if opts.Order == backend.OrderUpdateSequenceNumber {
		order = "usn"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s, local_id %s", order, dir, dir)

	offset := max(opts.Offset, 0)
	switch {
	case opts.Limit > 0:
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, opts.Limit, offset)
	case offset > 0:
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, offset)
	}

	return b.String(), args
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
