package pubsub

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevault/libsync/models"
)

func pushBody(t *testing.T, payload string, publishTime time.Time) *bytes.Buffer {
	t.Helper()

	body := fmt.Sprintf(`{"message":{"data":%q,"messageId":"m1","publishTime":%q},"subscription":"sub"}`,
		base64.StdEncoding.EncodeToString([]byte(payload)),
		publishTime.Format(time.RFC3339),
	)

	return bytes.NewBufferString(body)
}

func TestIntakeRead(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	intake := NewIntake(nil, WithClock(func() time.Time { return now }))

	t.Run("fresh message passes through", func(t *testing.T) {
		msg, expired, err := intake.Read(pushBody(t, `{"userId":"u1"}`, now.Add(-time.Minute)))

		require.NoError(t, err)
		assert.False(t, expired)
		assert.JSONEq(t, `{"userId":"u1"}`, string(msg))
	})

	t.Run("expired message is discarded, not rejected", func(t *testing.T) {
		msg, expired, err := intake.Read(pushBody(t, `{"userId":"u1"}`, now.Add(-2*time.Hour)))

		require.NoError(t, err)
		assert.True(t, expired)
		assert.Nil(t, msg)
	})

	t.Run("unparsable body is rejected", func(t *testing.T) {
		_, _, err := intake.Read(bytes.NewBufferString("not json"))

		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("envelope without data is rejected", func(t *testing.T) {
		_, _, err := intake.Read(bytes.NewBufferString(`{"message":{"messageId":"m1"}}`))

		assert.ErrorIs(t, err, ErrEmptyMessage)
	})
}

func TestDecodeSyncEvent(t *testing.T) {
	intake := NewIntake(nil)

	tests := []struct {
		name    string
		payload string
		want    models.SyncEvent
		wantErr bool
	}{
		{
			name:    "page event",
			payload: `{"type":"PAGE","id":"p1","userId":"u1"}`,
			want:    models.SyncEvent{Type: models.EntityPage, ID: "p1", UserID: "u1"},
		},
		{
			name:    "highlight event",
			payload: `{"type":"HIGHLIGHT","articleId":"a1","userId":"u1"}`,
			want:    models.SyncEvent{Type: models.EntityHighlight, ArticleID: "a1", UserID: "u1"},
		},
		{
			name:    "missing user id",
			payload: `{"type":"PAGE","id":"p1"}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			payload: `[1,2]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := intake.DecodeSyncEvent([]byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPayload)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, event)
		})
	}
}

func TestPushEnvelopeDataIsBase64(t *testing.T) {
	// The wire envelope carries base64; json decoding must yield raw bytes.
	var envelope pushEnvelope

	raw := `{"message":{"data":"` + base64.StdEncoding.EncodeToString([]byte("hello")) + `"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &envelope))
	assert.Equal(t, []byte("hello"), envelope.Message.Data)
}
