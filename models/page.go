package models

import (
	"context"
	"time"
)

// PageRecord is the read-only view of a saved page consumed from the page
// store when building export and import payloads.
type PageRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageStore is the search surface of the externally-owned page store.
type PageStore interface {
	GetByID(ctx context.Context, id string) (*PageRecord, error)
	// Search returns one page of the user's pages plus the total match count.
	// A nil updatedAfter means no date filter is applied.
	Search(ctx context.Context, userID string, updatedAfter *time.Time, offset, size int) ([]PageRecord, int, error)
}
