package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
)

// notebookColumns must match the scan order in scanNotebook.
const notebookColumns = `local_id, guid, linked_notebook_guid, usn, is_local, dirty, favorited,
	name, stack, is_default, last_used, published, restrictions`

func scanNotebook(scanner rowScanner) (domain.Notebook, error) {
	var (
		nb           domain.Notebook
		restrictions sql.NullString
	)
	err := scanner.Scan(
		&nb.LocalID,
		&nb.GUID,
		&nb.LinkedNotebookGUID,
		&nb.UpdateSequenceNumber,
		&nb.Local,
		&nb.Dirty,
		&nb.Favorited,
		&nb.Name,
		&nb.Stack,
		&nb.Default,
		&nb.LastUsed,
		&nb.Published,
		&restrictions,
	)
	if err != nil {
		return nb, err
	}
	nb.Restrictions, err = decodeRestrictions(restrictions)
	return nb, err
}

func notebookArgs(nb domain.Notebook) ([]any, error) {
	restrictions, err := encodeRestrictions(nb.Restrictions)
	if err != nil {
		return nil, err
	}
	return []any{
		nb.LocalID,
		nb.GUID,
		nb.LinkedNotebookGUID,
		nb.UpdateSequenceNumber,
		nb.Local,
		nb.Dirty,
		nb.Favorited,
		nb.Name,
		nb.Stack,
		nb.Default,
		nb.LastUsed,
		nb.Published,
		restrictions,
	}, nil
}

func encodeRestrictions(r *domain.NotebookRestrictions) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal restrictions: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeRestrictions(s sql.NullString) (*domain.NotebookRestrictions, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var r domain.NotebookRestrictions
	if err := json.Unmarshal([]byte(s.String), &r); err != nil {
		return nil, fmt.Errorf("unmarshal restrictions: %w", err)
	}
	return &r, nil
}

type notebooks struct {
	db *sql.DB
}

// Add inserts a new notebook. Returns localstorage.ErrAlreadyExists on a taken local id.
func (s *notebooks) Add(ctx context.Context, nb domain.Notebook) error {
	if nb.LocalID == "" {
		return localstorage.ErrInvalidInput.WithMessage("notebook without local id")
	}
	args, err := notebookArgs(nb)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notebooks (`+notebookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...)
	if isUniqueViolation(err) {
		return localstorage.ErrAlreadyExists.WithMessage("notebook already exists: " + nb.LocalID)
	}
	return err
}

// Update replaces a notebook. Returns localstorage.ErrNotFound if it does not exist.
func (s *notebooks) Update(ctx context.Context, nb domain.Notebook) error {
	args, err := notebookArgs(nb)
	if err != nil {
		return err
	}
	// Move local_id from the front to the WHERE clause.
	args = append(args[1:], args[0])

	res, err := s.db.ExecContext(ctx, `
		UPDATE notebooks SET
			guid = ?, linked_notebook_guid = ?, usn = ?, is_local = ?, dirty = ?,
			favorited = ?, name = ?, stack = ?, is_default = ?, last_used = ?,
			published = ?, restrictions = ?
		WHERE local_id = ?`,
		args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return localstorage.ErrNotFound.WithMessage("notebook not found: " + nb.LocalID)
	}
	return nil
}

// Find retrieves a notebook by local id.
func (s *notebooks) Find(ctx context.Context, localID string) (domain.Notebook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notebookColumns+` FROM notebooks WHERE local_id = ?`, localID)

	nb, err := scanNotebook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Notebook{}, localstorage.ErrNotFound.WithMessage("notebook not found: " + localID)
	}
	return nb, err
}

// List returns one page of notebooks.
func (s *notebooks) List(ctx context.Context, opts backend.ListOptions) ([]domain.Notebook, error) {
	clause, args := listClause(opts)
	rows, err := s.db.QueryContext(ctx, `SELECT `+notebookColumns+` FROM notebooks`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Notebook{}
	for rows.Next() {
		nb, err := scanNotebook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

// Expunge removes a notebook together with its notes. Notebooks have no
// descendants.
func (s *notebooks) Expunge(ctx context.Context, localID string) ([]string, error) {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM notebooks WHERE local_id = ?`, localID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return localstorage.ErrNotFound.WithMessage("notebook not found: " + localID)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM notes WHERE notebook_local_id = ?`, localID)
		return err
	})
	return nil, err
}

// NoteCount counts the notes of a notebook.
func (s *notebooks) NoteCount(ctx context.Context, localID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE notebook_local_id = ?`, localID).Scan(&n)
	return n, err
}

// NoteCounts counts the notes of every notebook with at least one.
func (s *notebooks) NoteCounts(ctx context.Context) (map[string]int, error) {
	return countBy(ctx, s.db, `SELECT notebook_local_id, COUNT(*) FROM notes WHERE notebook_local_id <> '' GROUP BY notebook_local_id`)
}
