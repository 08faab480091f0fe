package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pagevault/libsync/exporter"
	"github.com/pagevault/libsync/importer"
	"github.com/pagevault/libsync/models"
	"github.com/pagevault/libsync/pubsub"
	"github.com/pagevault/libsync/redis/tasks"
)

// ExportEngine is the slice of the export engine the handlers need.
type ExportEngine interface {
	Run(ctx context.Context, providerName string, action models.Action, event models.SyncEvent) (exporter.Outcome, error)
}

// ImportPipeline is the slice of the import pipeline the handlers need.
type ImportPipeline interface {
	Run(ctx context.Context, userID, integrationID string) (importer.Outcome, error)
}

// SyncScheduler enqueues sync work onto the task queue. A nil scheduler means
// no queue is configured and imports run inline in the request.
type SyncScheduler interface {
	EnqueueImport(ctx context.Context, payload *tasks.ImportPayload) (string, error)
	EnqueueFullSync(ctx context.Context, payload *tasks.FullSyncPayload) (string, error)
}

// IntegrationHandler exposes the sync service routes.
type IntegrationHandler struct {
	intake       *pubsub.Intake
	engine       ExportEngine
	pipeline     ImportPipeline
	integrations models.IntegrationStore
	scheduler    SyncScheduler
	logger       *zap.Logger
}

func NewIntegrationHandler(intake *pubsub.Intake, engine ExportEngine, pipeline ImportPipeline, integrations models.IntegrationStore, scheduler SyncScheduler, logger *zap.Logger) *IntegrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &IntegrationHandler{
		intake:       intake,
		engine:       engine,
		pipeline:     pipeline,
		integrations: integrations,
		scheduler:    scheduler,
		logger:       logger,
	}
}

type importRequest struct {
	IntegrationID string `json:"integrationId"`
}

// HandleSync is the push-notification entry: POST /{integrationName}/{action}.
// Benign no-op outcomes respond 200 so the broker stops redelivering.
func (h *IntegrationHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerName := vars["integrationName"]
	action := models.ParseAction(vars["action"])

	h.logger.Info("start to sync with integration",
		zap.String("provider", providerName),
		zap.String("action", action.String()),
	)

	msg, expired, err := h.intake.Read(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)

		return
	}

	if expired {
		renderText(w, http.StatusOK, "Expired")

		return
	}

	event, err := h.intake.DecodeSyncEvent(msg)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)

		return
	}

	outcome, err := h.engine.Run(r.Context(), providerName, action, event)
	if err != nil {
		h.logger.Error("sync with integration failed",
			zap.String("provider", providerName),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	switch outcome {
	case exporter.OutcomeSynced:
		renderText(w, http.StatusOK, "OK")
	case exporter.OutcomeNoIntegration:
		renderText(w, http.StatusOK, "No integration found")
	case exporter.OutcomeNoPage:
		renderText(w, http.StatusOK, "No page found")
	case exporter.OutcomeNotOwner:
		renderText(w, http.StatusOK, "Page does not belong to user")
	case exporter.OutcomeUnknownAction:
		renderText(w, http.StatusOK, "Unknown action")
	case exporter.OutcomeBadEvent:
		http.Error(w, "Bad Request", http.StatusBadRequest)
	case exporter.OutcomeExportFailed:
		http.Error(w, "Failed to sync", http.StatusBadRequest)
	default:
		http.Error(w, "unexpected outcome", http.StatusInternalServerError)
	}
}

// HandleImport is the authenticated import entry: POST /import. With a task
// queue configured the import runs on a worker; otherwise it runs inline.
func (h *IntegrationHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)

		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IntegrationID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)

		return
	}

	if h.scheduler != nil {
		taskID, err := h.scheduler.EnqueueImport(r.Context(), &tasks.ImportPayload{
			UserID:        claims.UserID,
			IntegrationID: req.IntegrationID,
		})
		if err != nil {
			h.logger.Error("failed to enqueue import task",
				zap.String("integration_id", req.IntegrationID),
				zap.Error(err),
			)
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		renderJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})

		return
	}

	outcome, err := h.pipeline.Run(r.Context(), claims.UserID, req.IntegrationID)
	if err != nil {
		h.logger.Error("import from integration failed",
			zap.String("integration_id", req.IntegrationID),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	switch outcome {
	case importer.OutcomeImported:
		renderText(w, http.StatusOK, "OK")
	case importer.OutcomeNoIntegration:
		renderText(w, http.StatusOK, "No integration found")
	case importer.OutcomeBusy:
		http.Error(w, "Import already running", http.StatusConflict)
	default:
		http.Error(w, "unexpected outcome", http.StatusInternalServerError)
	}
}

// HandleScheduleFullSync is the authenticated full-sync trigger:
// POST /{integrationName}/sync-all. The enqueued task id is recorded as the
// integration's in-flight task handle; the worker clears it when the sync
// completes.
func (h *IntegrationHandler) HandleScheduleFullSync(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)

		return
	}

	if h.scheduler == nil {
		http.Error(w, "Task queue not configured", http.StatusServiceUnavailable)

		return
	}

	providerName := mux.Vars(r)["integrationName"]

	integration, err := h.integrations.GetByProvider(r.Context(), claims.UserID, providerName, models.DirectionExport)
	if errors.Is(err, models.ErrNotFound) {
		renderText(w, http.StatusOK, "No integration found")

		return
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	taskID, err := h.scheduler.EnqueueFullSync(r.Context(), &tasks.FullSyncPayload{
		UserID:   claims.UserID,
		Provider: integration.Name,
	})
	if err != nil {
		h.logger.Error("failed to enqueue full sync task",
			zap.String("integration_id", integration.ID),
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	if err := h.integrations.SetTaskName(r.Context(), integration.ID, taskID); err != nil {
		// The task is already queued; a missing handle only degrades status
		// reporting.
		h.logger.Warn("failed to record task handle",
			zap.String("integration_id", integration.ID),
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}

	renderJSON(w, http.StatusOK, map[string]string{"taskId": taskID})
}

func renderText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
