package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetStatus returns the locally recorded status, StatusAll when none
func (r *Repository) GetStatus(bookID string) (ReadingStatus, error) {
	var status string
	err := r.db.QueryRow(`SELECT status FROM book_status WHERE book_id = ?`, bookID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusAll, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	return ReadingStatus(status), nil
}

func (r *Repository) SetStatus(bookID string, status ReadingStatus) error {
	if status == "" {
		status = StatusAll
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO book_status (book_id, status, updated_at) VALUES (?, ?, ?)`,
		bookID, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return nil
}

// GetProgress returns the locally recorded progress, zero when none
func (r *Repository) GetProgress(bookID string) (Progress, error) {
	var p Progress
	err := r.db.QueryRow(
		`SELECT page, total_pages, percent FROM book_progress WHERE book_id = ?`, bookID,
	).Scan(&p.Page, &p.TotalPages, &p.Percent)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

func (r *Repository) SetProgress(bookID string, page, totalPages int) (Progress, error) {
	p := NewProgress(page, totalPages)
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO book_progress (book_id, page, total_pages, percent, updated_at) VALUES (?, ?, ?, ?, ?)`,
		bookID, p.Page, p.TotalPages, p.Percent, time.Now().UTC(),
	)
	if err != nil {
		return Progress{}, fmt.Errorf("failed to set progress: %w", err)
	}
	return p, nil
}

// Shadows looks up status and progress for each of ids. Books with nothing
// stored get the defaults.
func (r *Repository) Shadows(ids []string) (map[string]Shadow, error) {
	out := make(map[string]Shadow, len(ids))
	for _, id := range ids {
		out[id] = Shadow{Status: StatusAll}
	}

	rows, err := r.db.Query(`SELECT book_id, status FROM book_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return nil, err
		}
		if s, ok := out[id]; ok {
			s.Status = ReadingStatus(status)
			out[id] = s
		}
	}
	rows.Close()

	rows, err = r.db.Query(`SELECT book_id, page, total_pages, percent FROM book_progress`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var p Progress
		if err := rows.Scan(&id, &p.Page, &p.TotalPages, &p.Percent); err != nil {
			return nil, err
		}
		if s, ok := out[id]; ok {
			s.Progress = p
			out[id] = s
		}
	}

	return out, rows.Err()
}

// AddNote stores a note, assigning an ID and timestamp when missing
func (r *Repository) AddNote(note *Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO notes (id, book_id, page, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.BookID, note.Page, note.Content, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}
	return nil
}

func (r *Repository) ListNotes(bookID string) ([]*Note, error) {
	rows, err := r.db.Query(
		`SELECT id, book_id, page, content, created_at FROM notes WHERE book_id = ? ORDER BY created_at, id`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n := &Note{}
		if err := rows.Scan(&n.ID, &n.BookID, &n.Page, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// AddHighlight stores a highlight, assigning an ID and timestamp when missing
func (r *Repository) AddHighlight(h *Highlight) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO highlights (id, book_id, page, text, color, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.BookID, h.Page, h.Text, h.Color, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save highlight: %w", err)
	}
	return nil
}

func (r *Repository) ListHighlights(bookID string) ([]*Highlight, error) {
	rows, err := r.db.Query(
		`SELECT id, book_id, page, text, color, created_at FROM highlights WHERE book_id = ? ORDER BY created_at, id`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list highlights: %w", err)
	}
	defer rows.Close()

	var highlights []*Highlight
	for rows.Next() {
		h := &Highlight{}
		if err := rows.Scan(&h.ID, &h.BookID, &h.Page, &h.Text, &h.Color, &h.CreatedAt); err != nil {
			return nil, err
		}
		highlights = append(highlights, h)
	}
	return highlights, rows.Err()
}

// GetReaderState returns nil when the book was never opened
func (r *Repository) GetReaderState(bookID string) (*ReaderState, error) {
	s := &ReaderState{BookID: bookID}
	err := r.db.QueryRow(
		`SELECT page, scale, updated_at FROM reader_state WHERE book_id = ?`, bookID,
	).Scan(&s.Page, &s.Scale, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reader state: %w", err)
	}
	return s, nil
}

func (r *Repository) SaveReaderState(state *ReaderState) error {
	state.UpdatedAt = time.Now().UTC()
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO reader_state (book_id, page, scale, updated_at) VALUES (?, ?, ?, ?)`,
		state.BookID, state.Page, state.Scale, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save reader state: %w", err)
	}
	return nil
}

// Forget drops everything stored for a book
func (r *Repository) Forget(bookID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	for _, table := range []string{"book_status", "book_progress", "notes", "highlights", "reader_state"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE book_id = ?`, bookID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to forget book in %s: %w", table, err)
		}
	}
	return tx.Commit()
}
