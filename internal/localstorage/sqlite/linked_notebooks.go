package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
)

// PutLinkedNotebook inserts or replaces a linked notebook.
func (s *Storage) PutLinkedNotebook(ctx context.Context, ln domain.LinkedNotebook) error {
	if ln.GUID == "" {
		return localstorage.ErrInvalidInput.WithMessage("linked notebook without guid")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_notebooks (guid, username, share_name, shared_notebook_global_id, usn)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guid) DO UPDATE SET
			username = excluded.username,
			share_name = excluded.share_name,
			shared_notebook_global_id = excluded.shared_notebook_global_id,
			usn = excluded.usn`,
		ln.GUID,
		ln.Username,
		ln.ShareName,
		ln.SharedNotebookGlobalID,
		ln.UpdateSequenceNumber,
	)
	return err
}

// ExpungeLinkedNotebook removes a linked notebook with its tags, notebooks and notes.
func (s *Storage) ExpungeLinkedNotebook(ctx context.Context, guid string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM linked_notebooks WHERE guid = ?`, guid)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return localstorage.ErrNotFound.WithMessage("linked notebook not found: " + guid)
		}

		statements := []string{
			`DELETE FROM notes WHERE notebook_local_id IN (SELECT local_id FROM notebooks WHERE linked_notebook_guid = ?)`,
			`DELETE FROM notebooks WHERE linked_notebook_guid = ?`,
			`DELETE FROM tags WHERE linked_notebook_guid = ?`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt, guid); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListLinkedNotebooks returns linked notebooks ordered by owner username.
func (s *Storage) ListLinkedNotebooks(ctx context.Context, opts backend.ListOptions) ([]domain.LinkedNotebook, error) {
	dir := "ASC"
	if opts.Direction == backend.Descending {
		dir = "DESC"
	}
	query := `SELECT guid, username, share_name, shared_notebook_global_id, usn FROM linked_notebooks
		ORDER BY username COLLATE NOCASE ` + dir + `, guid ` + dir
	var args []any
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, max(opts.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.LinkedNotebook{}
	for rows.Next() {
		var ln domain.LinkedNotebook
		if err := rows.Scan(&ln.GUID, &ln.Username, &ln.ShareName, &ln.SharedNotebookGlobalID, &ln.UpdateSequenceNumber); err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

// FindRestrictions returns the restrictions of the notebook shared through a
// linked notebook.
func (s *Storage) FindRestrictions(ctx context.Context, linkedNotebookGUID string) (*domain.NotebookRestrictions, error) {
	var restrictions sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT restrictions FROM notebooks WHERE linked_notebook_guid = ? ORDER BY local_id LIMIT 1`,
		linkedNotebookGUID).Scan(&restrictions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, localstorage.ErrNotFound.WithMessage("no notebook for linked notebook " + linkedNotebookGUID)
	}
	if err != nil {
		return nil, err
	}
	return decodeRestrictions(restrictions)
}
