package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pagevault/libsync/models"
)

type pageStore struct {
	db *sql.DB
}

// NewPageStore creates the read-only PostgreSQL adapter over the page table.
// The page store itself is owned elsewhere; this core only reads it.
func NewPageStore(db *sql.DB) models.PageStore {
	return &pageStore{db: db}
}

func (s *pageStore) GetByID(ctx context.Context, id string) (*models.PageRecord, error) {
	const q = `SELECT id, user_id, url, state, labels, updated_at
               FROM pages WHERE id = $1`

	var (
		page   models.PageRecord
		labels []byte
	)

	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&page.ID, &page.UserID, &page.URL, &page.State, &labels, &page.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", id, err)
	}

	if err := unmarshalLabels(labels, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

func (s *pageStore) Search(ctx context.Context, userID string, updatedAfter *time.Time, offset, size int) ([]models.PageRecord, int, error) {
	countQ := `SELECT count(*) FROM pages WHERE user_id = $1`
	selectQ := `SELECT id, user_id, url, state, labels, updated_at FROM pages WHERE user_id = $1`
	args := []any{userID}

	if updatedAfter != nil {
		countQ += ` AND updated_at >= $2`
		selectQ += ` AND updated_at >= $2`
		args = append(args, *updatedAfter)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pages: %w", err)
	}

	selectQ += fmt.Sprintf(` ORDER BY updated_at, id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, offset, size)

	rows, err := s.db.QueryContext(ctx, selectQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search pages: %w", err)
	}
	defer rows.Close()

	var pages []models.PageRecord
	for rows.Next() {
		var (
			page   models.PageRecord
			labels []byte
		)

		if err := rows.Scan(&page.ID, &page.UserID, &page.URL, &page.State, &labels, &page.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan page: %w", err)
		}

		if err := unmarshalLabels(labels, &page); err != nil {
			return nil, 0, err
		}

		pages = append(pages, page)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return pages, total, nil
}

func unmarshalLabels(raw []byte, page *models.PageRecord) error {
	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, &page.Labels); err != nil {
		return fmt.Errorf("failed to decode labels for page %s: %w", page.ID, err)
	}

	return nil
}
