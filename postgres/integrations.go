package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/pagevault/libsync/models"
	"github.com/pagevault/libsync/pkg/encryption"
)

type integrationStore struct {
	db     *sql.DB
	cipher *encryption.Cipher
}

// NewIntegrationStore creates the PostgreSQL implementation of
// models.IntegrationStore. Tokens are encrypted before they hit the table.
func NewIntegrationStore(db *sql.DB, cipher *encryption.Cipher) (models.IntegrationStore, error) {
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &integrationStore{db: db, cipher: cipher}, nil
}

const integrationColumns = `id, user_id, name, direction, enabled, token, synced_at, task_name,
               extract(epoch from created_at), extract(epoch from updated_at)`

func (s *integrationStore) GetByProvider(ctx context.Context, userID, name string, direction models.Direction) (*models.Integration, error) {
	const q = `SELECT ` + integrationColumns + `
               FROM integrations
               WHERE user_id = $1 AND name = $2 AND direction = $3 AND enabled`

	row := s.db.QueryRowContext(ctx, q, userID, models.NormalizeProvider(name), direction)

	return s.rowToIntegration(row)
}

func (s *integrationStore) GetByID(ctx context.Context, userID, id string, direction models.Direction) (*models.Integration, error) {
	const q = `SELECT ` + integrationColumns + `
               FROM integrations
               WHERE id = $1 AND user_id = $2 AND direction = $3 AND enabled`

	row := s.db.QueryRowContext(ctx, q, id, userID, direction)

	return s.rowToIntegration(row)
}

func (s *integrationStore) Create(ctx context.Context, integration *models.Integration) error {
	token, err := s.cipher.Encrypt(integration.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	const q = `INSERT INTO integrations (id, user_id, name, direction, enabled, token, synced_at, task_name, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, err = s.db.ExecContext(ctx, q,
		integration.ID,
		integration.UserID,
		models.NormalizeProvider(integration.Name),
		integration.Direction,
		integration.Enabled,
		token,
		integration.SyncedAt,
		integration.TaskName,
	)
	if err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}

	return nil
}

func (s *integrationStore) SetSyncedAt(ctx context.Context, id string, syncedAt time.Time) error {
	const q = `UPDATE integrations SET synced_at = $2, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, q, id, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to update synced_at: %w", err)
	}

	return ensureAffected(result, id)
}

func (s *integrationStore) SetTaskName(ctx context.Context, id, taskName string) error {
	const q = `UPDATE integrations SET task_name = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, q, id, taskName)
	if err != nil {
		return fmt.Errorf("failed to update task_name: %w", err)
	}

	return ensureAffected(result, id)
}

func ensureAffected(result sql.Result, id string) error {
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("integration %s: %w", id, models.ErrNotFound)
	}

	return nil
}

func (s *integrationStore) rowToIntegration(row *sql.Row) (*models.Integration, error) {
	var (
		integration          models.Integration
		token                string
		syncedAt             sql.NullTime
		taskName             sql.NullString
		createdAt, updatedAt float64
	)

	err := row.Scan(
		&integration.ID,
		&integration.UserID,
		&integration.Name,
		&integration.Direction,
		&integration.Enabled,
		&token,
		&syncedAt,
		&taskName,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan integration: %w", err)
	}

	integration.Token, err = s.cipher.Decrypt(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	if syncedAt.Valid {
		t := syncedAt.Time.UTC()
		integration.SyncedAt = &t
	}

	if taskName.Valid {
		integration.TaskName = &taskName.String
	}

	integration.CreatedAt = time.Unix(int64(createdAt), 0).UTC()
	integration.UpdatedAt = time.Unix(int64(updatedAt), 0).UTC()

	return &integration, nil
}
