// Package tasks defines the queued task types for integration sync work.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeImport   = "integration:import"
	TypeFullSync = "integration:sync_all"
)

var ErrInvalidPayload = errors.New("invalid task payload")

// ImportPayload triggers one import run for a user's integration.
type ImportPayload struct {
	UserID        string `json:"user_id"`
	IntegrationID string `json:"integration_id"`
}

// FullSyncPayload triggers a full export sync for a user's provider.
type FullSyncPayload struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
}

func NewImportTask(payload *ImportPayload) (*asynq.Task, error) {
	if payload.UserID == "" || payload.IntegrationID == "" {
		return nil, fmt.Errorf("%w: user id and integration id are required", ErrInvalidPayload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeImport, data), nil
}

func NewFullSyncTask(payload *FullSyncPayload) (*asynq.Task, error) {
	if payload.UserID == "" || payload.Provider == "" {
		return nil, fmt.Errorf("%w: user id and provider are required", ErrInvalidPayload)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeFullSync, data), nil
}
