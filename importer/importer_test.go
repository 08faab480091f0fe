package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevault/libsync/connector"
	"github.com/pagevault/libsync/models"
)

type fakeIntegrationStore struct {
	integration *models.Integration

	syncedAt *time.Time
}

func (s *fakeIntegrationStore) GetByProvider(_ context.Context, _, _ string, _ models.Direction) (*models.Integration, error) {
	return nil, models.ErrNotFound
}

func (s *fakeIntegrationStore) GetByID(_ context.Context, userID, id string, direction models.Direction) (*models.Integration, error) {
	if s.integration == nil ||
		s.integration.UserID != userID ||
		s.integration.ID != id ||
		s.integration.Direction != direction {
		return nil, models.ErrNotFound
	}

	copied := *s.integration

	return &copied, nil
}

func (s *fakeIntegrationStore) Create(_ context.Context, _ *models.Integration) error {
	return nil
}

func (s *fakeIntegrationStore) SetSyncedAt(_ context.Context, _ string, syncedAt time.Time) error {
	s.syncedAt = &syncedAt

	return nil
}

func (s *fakeIntegrationStore) SetTaskName(_ context.Context, _, _ string) error {
	return nil
}

type retrieveStep struct {
	result *connector.RetrieveResult
	err    error
}

type fakeConnector struct {
	name string

	steps    []retrieveStep
	requests []connector.RetrieveRequest
}

func (c *fakeConnector) Name() string { return c.name }

func (c *fakeConnector) Export(_ context.Context, _ *models.Integration, _ []models.PageRecord) (bool, error) {
	return false, connector.ErrNotSupported
}

func (c *fakeConnector) Retrieve(_ context.Context, req connector.RetrieveRequest) (*connector.RetrieveResult, error) {
	c.requests = append(c.requests, req)

	if len(c.steps) == 0 {
		return &connector.RetrieveResult{}, nil
	}

	step := c.steps[0]
	c.steps = c.steps[1:]

	return step.result, step.err
}

type memoryObject struct {
	buf    bytes.Buffer
	closed int
}

func (o *memoryObject) Write(p []byte) (int, error) { return o.buf.Write(p) }

func (o *memoryObject) Close() error {
	o.closed++

	return nil
}

type memorySink struct {
	key    string
	object *memoryObject
}

func (s *memorySink) Create(_ context.Context, key string) (io.WriteCloser, error) {
	s.key = key
	s.object = &memoryObject{}

	return s.object, nil
}

func importIntegration() *models.Integration {
	return &models.Integration{
		ID:        "i1",
		UserID:    "u1",
		Name:      "POCKET",
		Direction: models.DirectionImport,
		Enabled:   true,
		Token:     "tok",
	}
}

func newTestPipeline(store *fakeIntegrationStore, conn *fakeConnector, sink StagingSink, now time.Time) *Pipeline {
	return NewPipeline(store, connector.NewRegistry(conn), sink, NewMemoryLocker(), nil,
		WithClock(func() time.Time { return now }),
		WithUUIDSource(func() string { return "00000000-0000-0000-0000-000000000001" }),
	)
}

func items(urls ...string) []connector.Item {
	out := make([]connector.Item, len(urls))
	for i, u := range urls {
		out[i] = connector.Item{URL: u, State: "ACTIVE"}
	}

	return out
}

func TestRunStagesAllPages(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	watermark := time.Unix(1700000100, 0).UTC()

	conn := &fakeConnector{
		name: "POCKET",
		steps: []retrieveStep{
			{result: &connector.RetrieveResult{
				Data:    items("https://a", "https://b"),
				HasMore: true,
				Since:   time.Unix(1700000000, 0).UTC(),
			}},
			{result: &connector.RetrieveResult{
				Data:  items("https://c"),
				Since: watermark,
			}},
		},
	}

	store := &fakeIntegrationStore{integration: importIntegration()}
	sink := &memorySink{}
	pipeline := newTestPipeline(store, conn, sink, now)

	outcome, err := pipeline.Run(context.Background(), "u1", "i1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeImported, outcome)

	assert.Equal(t, "imports/u1/2025-06-01/URL_LIST-00000000-0000-0000-0000-000000000001.csv", sink.key)
	assert.Equal(t, 1, sink.object.closed)
	assert.Equal(t,
		"https://a,ACTIVE,\"[]\"\nhttps://b,ACTIVE,\"[]\"\nhttps://c,ACTIVE,\"[]\"\n",
		sink.object.buf.String(),
	)

	// Second fetch starts where the first left off, carrying its cursor.
	require.Len(t, conn.requests, 2)
	assert.Equal(t, 0, conn.requests[0].Offset)
	assert.True(t, conn.requests[0].Since.IsZero())
	assert.Equal(t, 2, conn.requests[1].Offset)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), conn.requests[1].Since)

	require.NotNil(t, store.syncedAt)
	assert.Equal(t, watermark, *store.syncedAt)
}

func TestRunEmptyPageEndsLoopDespiteHasMore(t *testing.T) {
	conn := &fakeConnector{
		name: "POCKET",
		steps: []retrieveStep{
			{result: &connector.RetrieveResult{Data: nil, HasMore: true}},
			{result: &connector.RetrieveResult{Data: items("https://never")}},
		},
	}

	store := &fakeIntegrationStore{integration: importIntegration()}
	sink := &memorySink{}
	pipeline := newTestPipeline(store, conn, sink, time.Now())

	outcome, err := pipeline.Run(context.Background(), "u1", "i1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeImported, outcome)
	assert.Len(t, conn.requests, 1)
	assert.Empty(t, sink.object.buf.String())
	assert.Equal(t, 1, sink.object.closed)
	assert.Nil(t, store.syncedAt, "nothing retrieved, watermark stays put")
}

func TestRunWatermarkDefaultsToRunTime(t *testing.T) {
	// Providers without a cursor of their own still advance the watermark, or
	// every run would re-pull the same window.
	now := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

	conn := &fakeConnector{
		name: "POCKET",
		steps: []retrieveStep{
			{result: &connector.RetrieveResult{Data: items("https://a")}},
		},
	}

	store := &fakeIntegrationStore{integration: importIntegration()}
	pipeline := newTestPipeline(store, conn, &memorySink{}, now)

	outcome, err := pipeline.Run(context.Background(), "u1", "i1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeImported, outcome)
	require.NotNil(t, store.syncedAt)
	assert.Equal(t, now, *store.syncedAt)
}

func TestRunExistingWatermarkPassedToProvider(t *testing.T) {
	watermark := time.Unix(1690000000, 0).UTC()
	integration := importIntegration()
	integration.SyncedAt = &watermark

	conn := &fakeConnector{name: "POCKET"}
	store := &fakeIntegrationStore{integration: integration}
	pipeline := newTestPipeline(store, conn, &memorySink{}, time.Now())

	_, err := pipeline.Run(context.Background(), "u1", "i1")
	require.NoError(t, err)

	require.Len(t, conn.requests, 1)
	assert.Equal(t, watermark, conn.requests[0].Since)
}

func TestRunRetrieveFailureKeepsPartialProgress(t *testing.T) {
	cursor := time.Unix(1700000000, 0).UTC()

	conn := &fakeConnector{
		name: "POCKET",
		steps: []retrieveStep{
			{result: &connector.RetrieveResult{Data: items("https://a"), HasMore: true, Since: cursor}},
			{err: errors.New("provider down")},
		},
	}

	store := &fakeIntegrationStore{integration: importIntegration()}
	sink := &memorySink{}
	pipeline := newTestPipeline(store, conn, sink, time.Now())

	outcome, err := pipeline.Run(context.Background(), "u1", "i1")

	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	// The stream is closed exactly once and the first page's rows survive.
	assert.Equal(t, 1, sink.object.closed)
	assert.Equal(t, "https://a,ACTIVE,\"[]\"\n", sink.object.buf.String())

	// Retries resume from the cursor the failed run reached.
	require.NotNil(t, store.syncedAt)
	assert.Equal(t, cursor, *store.syncedAt)
}

func TestRunNoIntegration(t *testing.T) {
	store := &fakeIntegrationStore{}
	pipeline := newTestPipeline(store, &fakeConnector{name: "POCKET"}, &memorySink{}, time.Now())

	outcome, err := pipeline.Run(context.Background(), "u1", "missing")

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoIntegration, outcome)
}

func TestRunWrongUserIsNoIntegration(t *testing.T) {
	store := &fakeIntegrationStore{integration: importIntegration()}
	pipeline := newTestPipeline(store, &fakeConnector{name: "POCKET"}, &memorySink{}, time.Now())

	outcome, err := pipeline.Run(context.Background(), "intruder", "i1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoIntegration, outcome)
}

func TestRunBusyWhenLeaseHeld(t *testing.T) {
	locker := NewMemoryLocker()
	release, err := locker.Acquire(context.Background(), "i1")
	require.NoError(t, err)
	defer release()

	store := &fakeIntegrationStore{integration: importIntegration()}
	pipeline := NewPipeline(store, connector.NewRegistry(&fakeConnector{name: "POCKET"}), &memorySink{}, locker, nil)

	outcome, err := pipeline.Run(context.Background(), "u1", "i1")

	require.NoError(t, err)
	assert.Equal(t, OutcomeBusy, outcome)
}

func TestRunReleasesLease(t *testing.T) {
	locker := NewMemoryLocker()
	store := &fakeIntegrationStore{integration: importIntegration()}
	pipeline := NewPipeline(store, connector.NewRegistry(&fakeConnector{name: "POCKET"}), &memorySink{}, locker, nil)

	_, err := pipeline.Run(context.Background(), "u1", "i1")
	require.NoError(t, err)

	release, err := locker.Acquire(context.Background(), "i1")
	require.NoError(t, err, "lease must be free after the run")
	release()
}

func TestCSVLine(t *testing.T) {
	tests := []struct {
		name string
		item connector.Item
		want string
	}{
		{
			name: "labels joined inside brackets",
			item: connector.Item{URL: "https://a", State: "ACTIVE", Labels: []string{"go", "infra"}},
			want: "https://a,ACTIVE,\"[go,infra]\"\n",
		},
		{
			name: "no labels renders empty brackets",
			item: connector.Item{URL: "https://b", State: "ARCHIVED"},
			want: "https://b,ARCHIVED,\"[]\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, csvLine(tt.item))
		})
	}
}

func TestFileSink(t *testing.T) {
	root := t.TempDir()
	sink := NewFileSink(root)

	w, err := sink.Create(context.Background(), "imports/u1/2025-06-01/URL_LIST-x.csv")
	require.NoError(t, err)

	_, err = w.Write([]byte("https://a,ACTIVE,\"[]\"\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(root, "imports", "u1", "2025-06-01", "URL_LIST-x.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "https://a,"))
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()

	release, err := locker.Acquire(context.Background(), "i1")
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "i1")
	assert.ErrorIs(t, err, ErrLocked)

	// Leases are per integration.
	other, err := locker.Acquire(context.Background(), "i2")
	require.NoError(t, err)
	other()

	release()

	release, err = locker.Acquire(context.Background(), "i1")
	require.NoError(t, err)
	release()
}
