// Package importer pulls items from an external service into durable staging
// storage. Each run walks the provider's pagination under a per-integration
// lease, streams one CSV object, and advances the integration's watermark.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pagevault/libsync/connector"
	"github.com/pagevault/libsync/models"
)

// Outcome classifies how an import run ended.
type Outcome int

const (
	// OutcomeImported means the run completed; zero retrieved rows is still a
	// completed run.
	OutcomeImported Outcome = iota
	// OutcomeNoIntegration means no enabled import integration matched.
	OutcomeNoIntegration
	// OutcomeBusy means another run holds the integration's lease.
	OutcomeBusy
	// OutcomeFailed means the run stopped on an unexpected error. Rows written
	// before the failure are preserved and the watermark reflects them, so a
	// retry resumes incrementally instead of restarting from scratch.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeNoIntegration:
		return "no integration"
	case OutcomeBusy:
		return "busy"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline executes staged bulk imports.
type Pipeline struct {
	integrations models.IntegrationStore
	registry     *connector.Registry
	sink         StagingSink
	locker       Locker
	logger       *zap.Logger
	now          func() time.Time
	newUUID      func() string
}

type PipelineOption func(*Pipeline)

// WithClock overrides the wall clock, used in tests.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithUUIDSource overrides staging object naming, used in tests.
func WithUUIDSource(gen func() string) PipelineOption {
	return func(p *Pipeline) {
		p.newUUID = gen
	}
}

func NewPipeline(integrations models.IntegrationStore, registry *connector.Registry, sink StagingSink, locker Locker, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		integrations: integrations,
		registry:     registry,
		sink:         sink,
		locker:       locker,
		logger:       logger,
		now:          time.Now,
		newUUID:      func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	if p.locker == nil {
		p.locker = NewMemoryLocker()
	}

	return p
}

// Run imports the integration's items into one staging object. Ownership and
// enablement are re-verified against userID before any work starts. Partial
// progress is committed: the stream is closed and the watermark persisted in
// the cleanup path even when a page fetch fails mid-run, so callers must
// treat a failed run as "some data landed, safe to retry incrementally".
func (p *Pipeline) Run(ctx context.Context, userID, integrationID string) (Outcome, error) {
	integration, err := p.integrations.GetByID(ctx, userID, integrationID, models.DirectionImport)
	if errors.Is(err, models.ErrNotFound) {
		p.logger.Info("no active import integration for user",
			zap.String("user_id", userID),
			zap.String("integration_id", integrationID),
		)

		return OutcomeNoIntegration, nil
	}

	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to resolve integration: %w", err)
	}

	conn, ok := p.registry.Lookup(integration.Name)
	if !ok {
		return OutcomeFailed, fmt.Errorf("no connector registered for provider %s", integration.Name)
	}

	release, err := p.locker.Acquire(ctx, integration.ID)
	if errors.Is(err, ErrLocked) {
		p.logger.Info("import already in flight", zap.String("integration_id", integration.ID))

		return OutcomeBusy, nil
	}

	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to acquire import lease: %w", err)
	}
	defer release()

	// Fresh object per run; a rerun never overwrites a prior partial file.
	key := fmt.Sprintf("imports/%s/%s/URL_LIST-%s.csv",
		userID, p.now().UTC().Format("2006-01-02"), p.newUUID())

	stream, err := p.sink.Create(ctx, key)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to open staging destination %s: %w", key, err)
	}

	p.logger.Info("importing items from integration",
		zap.String("integration_id", integration.ID),
		zap.String("staging_key", key),
	)

	var since time.Time
	if integration.SyncedAt != nil {
		since = *integration.SyncedAt
	}

	rows := 0
	runErr := func() error {
		offset := 0

		for hasMore := true; hasMore; {
			page, err := conn.Retrieve(ctx, connector.RetrieveRequest{
				Token:  integration.Token,
				Since:  since,
				Offset: offset,
			})
			if err != nil {
				return fmt.Errorf("retrieve at offset %d failed: %w", offset, err)
			}

			// A drained provider may still report hasMore; an empty page is
			// the natural end of the run either way.
			if len(page.Data) == 0 {
				break
			}

			for _, item := range page.Data {
				if _, err := stream.Write([]byte(csvLine(item))); err != nil {
					return fmt.Errorf("staging write failed: %w", err)
				}
			}

			rows += len(page.Data)
			offset += len(page.Data)

			// Advance the watermark even for watermark-agnostic providers, or
			// the same window would be resynced forever.
			if page.Since.IsZero() {
				since = p.now().UTC()
			} else {
				since = page.Since
			}

			hasMore = page.HasMore
		}

		return nil
	}()

	// Guaranteed cleanup: the stream closes and the watermark lands no matter
	// how the loop exited.
	runErr = multierr.Append(runErr, stream.Close())

	if !since.IsZero() {
		if err := p.integrations.SetSyncedAt(ctx, integration.ID, since); err != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("failed to persist watermark: %w", err))
		}
	}

	if runErr != nil {
		p.logger.Error("import run failed",
			zap.String("integration_id", integration.ID),
			zap.Int("rows", rows),
			zap.Error(runErr),
		)

		return OutcomeFailed, runErr
	}

	p.logger.Info("import run complete",
		zap.String("integration_id", integration.ID),
		zap.Int("rows", rows),
	)

	return OutcomeImported, nil
}

// csvLine renders one staged row as `url,state,"[l1,l2]"` with a trailing
// newline. The bracketed label list is the fixed format the downstream URL
// list consumer expects, not RFC 4180 quoting.
func csvLine(item connector.Item) string {
	return fmt.Sprintf("%s,%s,%q\n", item.URL, item.State, "["+strings.Join(item.Labels, ",")+"]")
}
