package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagevault/libsync/models"
)

const defaultReadwiseURL = "https://readwise.io/api/v2"

// Readwise exports saved pages to Readwise's document save API. It is an
// export-only provider; Retrieve returns ErrNotSupported.
type Readwise struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

type ReadwiseOption func(*Readwise)

// WithReadwiseBaseURL overrides the API endpoint, used in tests.
func WithReadwiseBaseURL(u string) ReadwiseOption {
	return func(r *Readwise) {
		r.baseURL = u
	}
}

func WithReadwiseHTTPClient(c *http.Client) ReadwiseOption {
	return func(r *Readwise) {
		r.client = c
	}
}

func NewReadwise(logger *zap.Logger, opts ...ReadwiseOption) *Readwise {
	r := &Readwise{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultReadwiseURL,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	return r
}

func (r *Readwise) Name() string {
	return "READWISE"
}

type readwiseDocument struct {
	URL      string   `json:"url"`
	Location string   `json:"location,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	SavedAt  string   `json:"saved_at,omitempty"`
}

// Export saves the batch of pages to Readwise. Readwise acknowledges the
// whole batch or rejects it; partial acceptance is not part of its API.
func (r *Readwise) Export(ctx context.Context, integration *models.Integration, pages []models.PageRecord) (bool, error) {
	docs := make([]readwiseDocument, 0, len(pages))
	for _, p := range pages {
		doc := readwiseDocument{
			URL:  p.URL,
			Tags: p.Labels,
		}
		if p.State == "ARCHIVED" {
			doc.Location = "archive"
		}
		if !p.UpdatedAt.IsZero() {
			doc.SavedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
		}

		docs = append(docs, doc)
	}

	body, err := json.Marshal(map[string]any{"documents": docs})
	if err != nil {
		return false, fmt.Errorf("failed to encode readwise payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/save/", bytes.NewReader(body))
	if err != nil {
		return false, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+integration.Token)

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("readwise save request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Warn("readwise rejected export batch",
			zap.Int("status", resp.StatusCode),
			zap.Int("pages", len(pages)),
		)

		return false, nil
	}

	return true, nil
}

func (r *Readwise) Retrieve(_ context.Context, _ RetrieveRequest) (*RetrieveResult, error) {
	return nil, fmt.Errorf("readwise: %w", ErrNotSupported)
}
