package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/pagevault/libsync/exporter"
	"github.com/pagevault/libsync/importer"
	"github.com/pagevault/libsync/models"
)

// ImportRunner is the slice of the import pipeline the worker needs.
type ImportRunner interface {
	Run(ctx context.Context, userID, integrationID string) (importer.Outcome, error)
}

// ExportRunner is the slice of the export engine the worker needs.
type ExportRunner interface {
	Run(ctx context.Context, providerName string, action models.Action, event models.SyncEvent) (exporter.Outcome, error)
}

// Handler processes queued integration sync tasks.
type Handler struct {
	imports ImportRunner
	exports ExportRunner
	logger  *zap.Logger
}

func NewHandler(imports ImportRunner, exports ExportRunner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		imports: imports,
		exports: exports,
		logger:  logger,
	}
}

// ProcessTask dispatches a task by type. A returned error makes asynq retry
// the task with backoff; benign outcomes return nil so the task completes.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	switch task.Type() {
	case TypeImport:
		return h.processImport(ctx, task)
	case TypeFullSync:
		return h.processFullSync(ctx, task)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type())
	}
}

func (h *Handler) processImport(ctx context.Context, task *asynq.Task) error {
	var payload ImportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	outcome, err := h.imports.Run(ctx, payload.UserID, payload.IntegrationID)
	if err != nil {
		return fmt.Errorf("import task for integration %s failed: %w", payload.IntegrationID, err)
	}

	// A busy integration means a concurrent run is already importing this
	// window; retrying the task would race it again.
	h.logger.Info("import task finished",
		zap.String("integration_id", payload.IntegrationID),
		zap.String("outcome", outcome.String()),
	)

	return nil
}

func (h *Handler) processFullSync(ctx context.Context, task *asynq.Task) error {
	var payload FullSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	event := models.SyncEvent{UserID: payload.UserID}

	outcome, err := h.exports.Run(ctx, payload.Provider, models.ActionSyncAll, event)
	if err != nil {
		return fmt.Errorf("full sync task for user %s failed: %w", payload.UserID, err)
	}

	if outcome == exporter.OutcomeExportFailed {
		return fmt.Errorf("full sync for user %s was not confirmed", payload.UserID)
	}

	h.logger.Info("full sync task finished",
		zap.String("user_id", payload.UserID),
		zap.String("outcome", outcome.String()),
	)

	return nil
}
