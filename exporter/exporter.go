// Package exporter drives outbound synchronization: a decoded push event is
// resolved against the user's export integration and either the single
// affected page or every page updated since the watermark is pushed through
// the provider connector.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagevault/libsync/connector"
	"github.com/pagevault/libsync/models"
)

// pageSize is the fixed batch size of a full sync.
const pageSize = 50

// Outcome classifies how an export run ended. Everything except
// OutcomeExportFailed is a benign terminal state; reporting those as errors
// would only trigger redelivery storms upstream.
type Outcome int

const (
	// OutcomeSynced means the export completed and was confirmed.
	OutcomeSynced Outcome = iota
	// OutcomeNoIntegration means no enabled export integration exists for the
	// user and provider. Expected steady state, not a failure.
	OutcomeNoIntegration
	// OutcomeNoPage means the referenced page no longer exists.
	OutcomeNoPage
	// OutcomeNotOwner means the page exists but belongs to another user; the
	// notification was stale or misrouted.
	OutcomeNotOwner
	// OutcomeUnknownAction means the action token was not recognized.
	OutcomeUnknownAction
	// OutcomeBadEvent means the event lacks the identifier its type requires.
	OutcomeBadEvent
	// OutcomeExportFailed means the connector did not confirm the write; the
	// caller should let redelivery retry it.
	OutcomeExportFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSynced:
		return "synced"
	case OutcomeNoIntegration:
		return "no integration"
	case OutcomeNoPage:
		return "no page"
	case OutcomeNotOwner:
		return "not owner"
	case OutcomeUnknownAction:
		return "unknown action"
	case OutcomeBadEvent:
		return "bad event"
	case OutcomeExportFailed:
		return "export failed"
	default:
		return "unknown"
	}
}

// Engine resolves integrations and runs export syncs. It keeps no state
// across invocations beyond what the integration store persists.
type Engine struct {
	integrations models.IntegrationStore
	pages        models.PageStore
	registry     *connector.Registry
	logger       *zap.Logger
	now          func() time.Time
}

type EngineOption func(*Engine)

// WithClock overrides the wall clock, used in tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(integrations models.IntegrationStore, pages models.PageStore, registry *connector.Registry, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		integrations: integrations,
		pages:        pages,
		registry:     registry,
		logger:       logger,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	return e
}

// Run executes one export sync for the event. A non-nil error is always an
// unexpected failure; every expected condition is reported through the
// outcome.
func (e *Engine) Run(ctx context.Context, providerName string, action models.Action, event models.SyncEvent) (Outcome, error) {
	integration, err := e.integrations.GetByProvider(ctx, event.UserID, providerName, models.DirectionExport)
	if errors.Is(err, models.ErrNotFound) {
		e.logger.Info("no active export integration for user",
			zap.String("user_id", event.UserID),
			zap.String("provider", providerName),
		)

		return OutcomeNoIntegration, nil
	}

	if err != nil {
		return OutcomeExportFailed, fmt.Errorf("failed to resolve integration: %w", err)
	}

	conn, ok := e.registry.Lookup(integration.Name)
	if !ok {
		return OutcomeExportFailed, fmt.Errorf("no connector registered for provider %s", integration.Name)
	}

	switch action {
	case models.ActionSyncUpdated:
		return e.syncUpdated(ctx, integration, conn, event)
	case models.ActionSyncAll:
		return e.syncAll(ctx, integration, conn, event.UserID)
	default:
		e.logger.Info("unknown sync action", zap.String("user_id", event.UserID))

		return OutcomeUnknownAction, nil
	}
}

// syncUpdated exports the single page the event refers to. A vanished page or
// an ownership mismatch ends the run quietly: the notification may be stale
// and the caller does not control delivery ordering.
func (e *Engine) syncUpdated(ctx context.Context, integration *models.Integration, conn connector.Connector, event models.SyncEvent) (Outcome, error) {
	pageID := event.EntityPageID()
	if pageID == "" {
		e.logger.Info("sync event carries no page id", zap.String("user_id", event.UserID))

		return OutcomeBadEvent, nil
	}

	page, err := e.pages.GetByID(ctx, pageID)
	if errors.Is(err, models.ErrNotFound) {
		e.logger.Info("no page found for sync event", zap.String("page_id", pageID))

		return OutcomeNoPage, nil
	}

	if err != nil {
		return OutcomeExportFailed, fmt.Errorf("failed to fetch page %s: %w", pageID, err)
	}

	if page.UserID != event.UserID {
		e.logger.Info("page does not belong to event user",
			zap.String("page_id", pageID),
			zap.String("user_id", event.UserID),
		)

		return OutcomeNotOwner, nil
	}

	e.logger.Info("syncing updated page with integration",
		zap.String("integration_id", integration.ID),
		zap.String("page_id", page.ID),
	)

	committed, err := conn.Export(ctx, integration, []models.PageRecord{*page})
	if err != nil {
		return OutcomeExportFailed, fmt.Errorf("export of page %s failed: %w", page.ID, err)
	}

	if !committed {
		e.logger.Warn("connector did not confirm page export",
			zap.String("integration_id", integration.ID),
			zap.String("page_id", page.ID),
		)

		return OutcomeExportFailed, nil
	}

	return OutcomeSynced, nil
}

// syncAll walks every page updated since the integration's watermark in
// fixed-size batches. Any failed batch aborts the run with the watermark and
// task handle untouched, so a retry re-walks the same window instead of
// silently skipping unsynced pages. A completed run advances the watermark to
// the run start and clears the task handle.
func (e *Engine) syncAll(ctx context.Context, integration *models.Integration, conn connector.Connector, userID string) (Outcome, error) {
	start := e.now().UTC()
	updatedAfter := integration.SyncedAt

	for offset := 0; ; offset += pageSize {
		pages, total, err := e.pages.Search(ctx, userID, updatedAfter, offset, pageSize)
		if err != nil {
			return OutcomeExportFailed, fmt.Errorf("page search failed at offset %d: %w", offset, err)
		}

		e.logger.Info("syncing page batch",
			zap.String("integration_id", integration.ID),
			zap.Int("offset", offset),
			zap.Int("batch", len(pages)),
			zap.Int("total", total),
		)

		committed, err := conn.Export(ctx, integration, pages)
		if err != nil {
			return OutcomeExportFailed, fmt.Errorf("export batch at offset %d failed: %w", offset, err)
		}

		if !committed {
			e.logger.Warn("connector did not confirm batch export",
				zap.String("integration_id", integration.ID),
				zap.Int("offset", offset),
			)

			return OutcomeExportFailed, nil
		}

		if total <= offset+pageSize {
			break
		}
	}

	if err := e.integrations.SetSyncedAt(ctx, integration.ID, start); err != nil {
		return OutcomeExportFailed, fmt.Errorf("failed to advance watermark: %w", err)
	}

	if err := e.integrations.SetTaskName(ctx, integration.ID, ""); err != nil {
		return OutcomeExportFailed, fmt.Errorf("failed to clear task name: %w", err)
	}

	return OutcomeSynced, nil
}
