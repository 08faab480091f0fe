package models

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

// Direction indicates which way an integration moves data.
type Direction string

const (
	DirectionExport Direction = "EXPORT"
	DirectionImport Direction = "IMPORT"
)

// Integration represents a configured link between a user and an external
// service. At most one enabled integration exists per (user, name, direction).
type Integration struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"` // provider identifier, stored upper-case
	Direction Direction  `json:"direction"`
	Enabled   bool       `json:"enabled"`
	Token     string     `json:"-"` // provider credential, stored encrypted
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
	TaskName  *string    `json:"task_name,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NormalizeProvider canonicalizes a provider name for lookups.
func NormalizeProvider(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// IntegrationStore manages integration record operations
type IntegrationStore interface {
	// GetByProvider returns the enabled integration for (userID, name, direction).
	GetByProvider(ctx context.Context, userID, name string, direction Direction) (*Integration, error)
	// GetByID returns the enabled integration with the given id owned by userID.
	GetByID(ctx context.Context, userID, id string, direction Direction) (*Integration, error)
	Create(ctx context.Context, integration *Integration) error
	SetSyncedAt(ctx context.Context, id string, syncedAt time.Time) error
	// SetTaskName records the in-flight job handle; empty clears it.
	SetTaskName(ctx context.Context, id, taskName string) error
}
