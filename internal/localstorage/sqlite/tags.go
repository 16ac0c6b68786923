package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `local_id, guid, linked_notebook_guid, usn, is_local, dirty, favorited,
	name, parent_local_id, parent_guid`

func scanTag(scanner rowScanner) (domain.Tag, error) {
	var t domain.Tag
	err := scanner.Scan(
		&t.LocalID,
		&t.GUID,
		&t.LinkedNotebookGUID,
		&t.UpdateSequenceNumber,
		&t.Local,
		&t.Dirty,
		&t.Favorited,
		&t.Name,
		&t.ParentLocalID,
		&t.ParentGUID,
	)
	return t, err
}

func tagArgs(t domain.Tag) []any {
	return []any{
		t.LocalID,
		t.GUID,
		t.LinkedNotebookGUID,
		t.UpdateSequenceNumber,
		t.Local,
		t.Dirty,
		t.Favorited,
		t.Name,
		t.ParentLocalID,
		t.ParentGUID,
	}
}

type tags struct {
	db *sql.DB
}

// Add inserts a new tag. Returns localstorage.ErrAlreadyExists on a taken local id.
func (s *tags) Add(ctx context.Context, t domain.Tag) error {
	if t.LocalID == "" {
		return localstorage.ErrInvalidInput.WithMessage("tag without local id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (`+tagColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tagArgs(t)...)
	if isUniqueViolation(err) {
		return localstorage.ErrAlreadyExists.WithMessage("tag already exists: " + t.LocalID)
	}
	return err
}

// Update replaces a tag. Returns localstorage.ErrNotFound if it does not exist.
func (s *tags) Update(ctx context.Context, t domain.Tag) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tags SET
			guid = ?, linked_notebook_guid = ?, usn = ?, is_local = ?, dirty = ?,
			favorited = ?, name = ?, parent_local_id = ?, parent_guid = ?
		WHERE local_id = ?`,
		t.GUID,
		t.LinkedNotebookGUID,
		t.UpdateSequenceNumber,
		t.Local,
		t.Dirty,
		t.Favorited,
		t.Name,
		t.ParentLocalID,
		t.ParentGUID,
		t.LocalID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return localstorage.ErrNotFound.WithMessage("tag not found: " + t.LocalID)
	}
	return nil
}

// Find retrieves a tag by local id.
func (s *tags) Find(ctx context.Context, localID string) (domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE local_id = ?`, localID)

	t, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tag{}, localstorage.ErrNotFound.WithMessage("tag not found: " + localID)
	}
	return t, err
}

// List returns one page of tags.
func (s *tags) List(ctx context.Context, opts backend.ListOptions) ([]domain.Tag, error) {
	clause, args := listClause(opts)
	rows, err := s.db.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Expunge removes a tag with all of its descendants and returns the
// descendants' local ids.
func (s *tags) Expunge(ctx context.Context, localID string) ([]string, error) {
	var removed []string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE local_id = ?`, localID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return localstorage.ErrNotFound.WithMessage("tag not found: " + localID)
		}
		if err != nil {
			return err
		}

		ids := []string{localID}
		seen := map[string]bool{localID: true}
		for i := 0; i < len(ids); i++ {
			children, err := childTags(ctx, tx, ids[i])
			if err != nil {
				return err
			}
			for _, child := range children {
				if !seen[child] {
					seen[child] = true
					ids = append(ids, child)
				}
			}
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE local_id = ?`, id); err != nil {
				return err
			}
		}
		removed = ids[1:]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func childTags(ctx context.Context, tx *sql.Tx, parentLocalID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT local_id FROM tags WHERE parent_local_id = ? ORDER BY local_id`, parentLocalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NoteCount counts the notes labelled with a tag.
func (s *tags) NoteCount(ctx context.Context, localID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_tags WHERE tag_local_id = ?`, localID).Scan(&n)
	return n, err
}

// NoteCounts counts the notes of every tag with at least one.
func (s *tags) NoteCounts(ctx context.Context) (map[string]int, error) {
	return countBy(ctx, s.db, `SELECT tag_local_id, COUNT(*) FROM note_tags GROUP BY tag_local_id`)
}

func countBy(ctx context.Context, db *sql.DB, query string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
