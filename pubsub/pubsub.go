// Package pubsub decodes inbound push-subscription notifications. Delivery is
// at-least-once and messages can outlive their useful window, so the intake
// distinguishes malformed messages (reject) from expired ones (discard and
// acknowledge).
package pubsub

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pagevault/libsync/models"
)

// DefaultMaxAge matches the delivery retry window of the push subscription.
const DefaultMaxAge = time.Hour

var (
	ErrEmptyMessage   = errors.New("push notification carries no message")
	ErrInvalidPayload = errors.New("push notification payload is not a valid sync event")
)

// pushEnvelope is the wire shape of a push-subscription delivery. Data is
// base64 on the wire; encoding/json decodes it into raw bytes.
type pushEnvelope struct {
	Message struct {
		Data        []byte    `json:"data"`
		MessageID   string    `json:"messageId"`
		PublishTime time.Time `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Intake validates and decodes push notifications before any sync work starts.
type Intake struct {
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

type IntakeOption func(*Intake)

func WithMaxAge(d time.Duration) IntakeOption {
	return func(i *Intake) {
		i.maxAge = d
	}
}

// WithClock overrides the wall clock, used in tests.
func WithClock(now func() time.Time) IntakeOption {
	return func(i *Intake) {
		i.now = now
	}
}

func NewIntake(logger *zap.Logger, opts ...IntakeOption) *Intake {
	i := &Intake{
		maxAge: DefaultMaxAge,
		logger: logger,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	if i.logger == nil {
		i.logger = zap.NewNop()
	}

	return i
}

// Read extracts the raw message payload from a push delivery body and reports
// whether the message has expired. An expired message is not an error: the
// caller must acknowledge it as handled so the broker stops redelivering it.
func (i *Intake) Read(body io.Reader) (msg []byte, expired bool, err error) {
	var envelope pushEnvelope
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return nil, false, ErrEmptyMessage
	}

	if len(envelope.Message.Data) == 0 {
		return nil, false, ErrEmptyMessage
	}

	if !envelope.Message.PublishTime.IsZero() && i.now().Sub(envelope.Message.PublishTime) > i.maxAge {
		i.logger.Info("discarding expired push message",
			zap.String("message_id", envelope.Message.MessageID),
			zap.Time("publish_time", envelope.Message.PublishTime),
		)

		return nil, true, nil
	}

	return envelope.Message.Data, false, nil
}

// DecodeSyncEvent parses the message payload into a sync event, rejecting
// payloads missing the user or the type-appropriate identifier.
func (i *Intake) DecodeSyncEvent(msg []byte) (models.SyncEvent, error) {
	var event models.SyncEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return models.SyncEvent{}, ErrInvalidPayload
	}

	if event.UserID == "" {
		i.logger.Info("sync event has no user id")

		return models.SyncEvent{}, ErrInvalidPayload
	}

	return event, nil
}
