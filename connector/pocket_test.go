package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPocketRetrieve(t *testing.T) {
	var got pocketGetRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v3/get", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"since": 1700000000,
			"list": map[string]any{
				"1": map[string]any{
					"given_url":    "https://given.example",
					"resolved_url": "https://resolved.example",
					"status":       "0",
					"tags": map[string]any{
						"reading": map[string]any{},
						"tech":    map[string]any{},
					},
				},
				"2": map[string]any{
					"given_url": "https://archived.example",
					"status":    "1",
				},
			},
		})
	}))
	defer server.Close()

	pocket := NewPocket("consumer-key", nil, WithPocketBaseURL(server.URL))

	since := time.Unix(1690000000, 0).UTC()
	result, err := pocket.Retrieve(context.Background(), RetrieveRequest{
		Token:  "access-token",
		Since:  since,
		Offset: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "consumer-key", got.ConsumerKey)
	assert.Equal(t, "access-token", got.AccessToken)
	assert.Equal(t, int64(1690000000), got.Since)
	assert.Equal(t, 10, got.Offset)

	assert.Equal(t, time.Unix(1700000000, 0).UTC(), result.Since)
	assert.False(t, result.HasMore) // fewer than a full page
	require.Len(t, result.Data, 2)

	byURL := map[string]Item{}
	for _, item := range result.Data {
		byURL[item.URL] = item
	}

	resolved := byURL["https://resolved.example"]
	assert.Equal(t, "ACTIVE", resolved.State)
	sort.Strings(resolved.Labels)
	assert.Equal(t, []string{"reading", "tech"}, resolved.Labels)

	archived := byURL["https://archived.example"]
	assert.Equal(t, "ARCHIVED", archived.State)
	assert.Empty(t, archived.Labels)
}

func TestPocketRetrieveZeroSinceOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "since")

		_ = json.NewEncoder(w).Encode(map[string]any{"list": map[string]any{}})
	}))
	defer server.Close()

	pocket := NewPocket("key", nil, WithPocketBaseURL(server.URL))

	result, err := pocket.Retrieve(context.Background(), RetrieveRequest{Token: "tok"})
	require.NoError(t, err)
	assert.Empty(t, result.Data)
	assert.True(t, result.Since.IsZero())
}

func TestPocketRetrieveErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	pocket := NewPocket("key", nil, WithPocketBaseURL(server.URL))

	_, err := pocket.Retrieve(context.Background(), RetrieveRequest{Token: "tok"})
	assert.Error(t, err)
}

func TestPocketExportNotSupported(t *testing.T) {
	pocket := NewPocket("key", nil)

	_, err := pocket.Export(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNotSupported)
}
