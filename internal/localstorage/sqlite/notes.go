package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
)

// PutNote inserts or replaces a note and returns the version it replaced.
func (s *Storage) PutNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	if note.LocalID == "" {
		return nil, localstorage.ErrInvalidInput.WithMessage("note without local id")
	}

	var prev *domain.Note
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		prev, err = findNote(ctx, tx, note.LocalID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notes (local_id, title, notebook_local_id) VALUES (?, ?, ?)
			ON CONFLICT(local_id) DO UPDATE SET
				title = excluded.title,
				notebook_local_id = excluded.notebook_local_id`,
			note.LocalID, note.Title, note.NotebookLocalID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_local_id = ?`, note.LocalID); err != nil {
			return err
		}
		for i, tagID := range note.TagLocalIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO note_tags (note_local_id, tag_local_id, position) VALUES (?, ?, ?)`,
				note.LocalID, tagID, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// ExpungeNote removes a note and returns it.
func (s *Storage) ExpungeNote(ctx context.Context, localID string) (*domain.Note, error) {
	var removed *domain.Note
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		removed, err = findNote(ctx, tx, localID)
		if err != nil {
			return err
		}
		if removed == nil {
			return localstorage.ErrNotFound.WithMessage("note not found: " + localID)
		}
		// note_tags rows go with the note.
		_, err = tx.ExecContext(ctx, `DELETE FROM notes WHERE local_id = ?`, localID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// findNote returns nil without an error when the note does not exist.
func findNote(ctx context.Context, tx *sql.Tx, localID string) (*domain.Note, error) {
	var note domain.Note
	err := tx.QueryRowContext(ctx,
		`SELECT local_id, title, notebook_local_id FROM notes WHERE local_id = ?`, localID).
		Scan(&note.LocalID, &note.Title, &note.NotebookLocalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT tag_local_id FROM note_tags WHERE note_local_id = ? ORDER BY position`, localID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tagID string
		if err := rows.Scan(&tagID); err != nil {
			return nil, err
		}
		note.TagLocalIDs = append(note.TagLocalIDs, tagID)
	}
	return &note, rows.Err()
}
