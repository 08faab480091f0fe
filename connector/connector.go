// Package connector defines the per-provider capability interface used by the
// export and import pipelines, plus the registry that selects an
// implementation by provider name.
package connector

import (
	"context"
	"errors"
	"time"

	"github.com/pagevault/libsync/models"
)

// ErrNotSupported is returned by providers that only implement one direction.
var ErrNotSupported = errors.New("operation not supported by provider")

// Item is one record retrieved from an external service during import.
type Item struct {
	URL    string
	State  string
	Labels []string
}

// RetrieveRequest is the cursor handed to a provider when pulling a page of
// items. A zero Since means "from the beginning".
type RetrieveRequest struct {
	Token  string
	Since  time.Time
	Offset int
}

// RetrieveResult is one page of retrieved items. Since is the provider's
// watermark for the page; providers that do not track one leave it zero and
// the pipeline substitutes the read time.
type RetrieveResult struct {
	Data    []Item
	HasMore bool
	Since   time.Time
}

// Connector is the capability a provider exposes. Export reports whether the
// external write was confirmed; a false result without an error means the
// provider refused the batch.
type Connector interface {
	Name() string
	Export(ctx context.Context, integration *models.Integration, pages []models.PageRecord) (bool, error)
	Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResult, error)
}
