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

const (
	defaultPocketURL = "https://getpocket.com"
	pocketPageSize   = 100
)

// Pocket pulls a user's saved items through Pocket's /v3/get API. It is an
// import-only provider; Export returns ErrNotSupported.
type Pocket struct {
	client      *http.Client
	baseURL     string
	consumerKey string
	logger      *zap.Logger
}

type PocketOption func(*Pocket)

func WithPocketBaseURL(u string) PocketOption {
	return func(p *Pocket) {
		p.baseURL = u
	}
}

func WithPocketHTTPClient(c *http.Client) PocketOption {
	return func(p *Pocket) {
		p.client = c
	}
}

func NewPocket(consumerKey string, logger *zap.Logger, opts ...PocketOption) *Pocket {
	p := &Pocket{
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultPocketURL,
		consumerKey: consumerKey,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	return p
}

func (p *Pocket) Name() string {
	return "POCKET"
}

func (p *Pocket) Export(_ context.Context, _ *models.Integration, _ []models.PageRecord) (bool, error) {
	return false, fmt.Errorf("pocket: %w", ErrNotSupported)
}

type pocketGetRequest struct {
	ConsumerKey string `json:"consumer_key"`
	AccessToken string `json:"access_token"`
	State       string `json:"state"`
	Sort        string `json:"sort"`
	DetailType  string `json:"detailType"`
	Since       int64  `json:"since,omitempty"`
	Offset      int    `json:"offset"`
	Count       int    `json:"count"`
}

type pocketItem struct {
	GivenURL    string                    `json:"given_url"`
	ResolvedURL string                    `json:"resolved_url"`
	Status      string                    `json:"status"`
	Tags        map[string]map[string]any `json:"tags"`
}

type pocketGetResponse struct {
	List  map[string]pocketItem `json:"list"`
	Since int64                 `json:"since"`
}

// Retrieve fetches one page of items saved since the cursor. Pocket reports
// its own watermark with each response; HasMore is inferred from a full page.
func (p *Pocket) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResult, error) {
	payload := pocketGetRequest{
		ConsumerKey: p.consumerKey,
		AccessToken: req.Token,
		State:       "all",
		Sort:        "oldest",
		DetailType:  "complete",
		Offset:      req.Offset,
		Count:       pocketPageSize,
	}
	if !req.Since.IsZero() {
		payload.Since = req.Since.Unix()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v3/get", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pocket get request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pocket get returned status %d", resp.StatusCode)
	}

	var decoded pocketGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode pocket response: %w", err)
	}

	items := make([]Item, 0, len(decoded.List))
	for _, it := range decoded.List {
		url := it.ResolvedURL
		if url == "" {
			url = it.GivenURL
		}
		if url == "" {
			continue
		}

		labels := make([]string, 0, len(it.Tags))
		for tag := range it.Tags {
			labels = append(labels, tag)
		}

		items = append(items, Item{
			URL:    url,
			State:  pocketState(it.Status),
			Labels: labels,
		})
	}

	result := &RetrieveResult{
		Data:    items,
		HasMore: len(decoded.List) == pocketPageSize,
	}
	if decoded.Since > 0 {
		result.Since = time.Unix(decoded.Since, 0).UTC()
	}

	return result, nil
}

func pocketState(status string) string {
	switch status {
	case "1":
		return "ARCHIVED"
	case "2":
		return "DELETED"
	default:
		return "ACTIVE"
	}
}
