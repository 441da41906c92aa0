package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReadingStatus is the shelf a book sits on
type ReadingStatus string

const (
	StatusAll       ReadingStatus = "all"
	StatusReading   ReadingStatus = "reading"
	StatusPlan      ReadingStatus = "plan"
	StatusCompleted ReadingStatus = "completed"
	StatusFavorite  ReadingStatus = "favorite"
)

// Statuses lists every status in tab order
var Statuses = []ReadingStatus{StatusAll, StatusReading, StatusPlan, StatusCompleted, StatusFavorite}

var ErrInvalidStatus = errors.New("invalid reading status")

// Label returns the human readable name of the status
func (s ReadingStatus) Label() string {
	switch s {
	case StatusReading:
		return "Currently Reading"
	case StatusPlan:
		return "Plan to Read"
	case StatusCompleted:
		return "Completed"
	case StatusFavorite:
		return "Favorites"
	default:
		return "All"
	}
}

// ParseReadingStatus accepts a slug or a label, case-insensitively.
// An empty string is the default shelf.
func ParseReadingStatus(s string) (ReadingStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusAll, nil
	}
	for _, status := range Statuses {
		if strings.EqualFold(s, string(status)) || strings.EqualFold(s, status.Label()) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

type Progress struct {
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
	Percent    float64 `json:"progress"`
}

// NewProgress computes the percentage read; an unknown total counts as 0%.
func NewProgress(page, totalPages int) Progress {
	percent := 0.0
	if totalPages > 0 {
		percent = float64(page) / float64(totalPages) * 100
	}
	return Progress{Page: page, TotalPages: totalPages, Percent: percent}
}

type Book struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Author    string        `json:"author,omitempty"`
	FileURL   string        `json:"file_url"`
	CoverURL  string        `json:"cover_url,omitempty"`
	Status    ReadingStatus `json:"status,omitempty"`
	Progress  *Progress     `json:"progress,omitempty"`
	CreatedAt time.Time     `json:"created_at,omitzero"`
}

// UnmarshalJSON accepts "_id" as an alias for "id"
func (b *Book) UnmarshalJSON(raw []byte) error {
	type plain Book
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	*b = Book(aux.plain)
	if b.ID == "" {
		b.ID = aux.MongoID
	}
	return nil
}

type Note struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Highlight struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	Text      string    `json:"text"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReaderState is where the reader left a book, and at which zoom
type ReaderState struct {
	BookID    string
	Page      int
	Scale     float64
	UpdatedAt time.Time
}

// Shadow is the locally mirrored part of a book
type Shadow struct {
	Status   ReadingStatus
	Progress Progress
}

// Notebook gathers what a reader wrote down about a book
type Notebook struct {
	Book       *Book
	Notes      []*Note
	Highlights []*Highlight
}
