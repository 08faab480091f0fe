package redis

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/pagevault/libsync/redis/tasks"
)

// Client enqueues integration sync tasks.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg *Config) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// EnqueueImport schedules an import run and returns the task id.
func (c *Client) EnqueueImport(ctx context.Context, payload *tasks.ImportPayload) (string, error) {
	task, err := tasks.NewImportTask(payload)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue("default"))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue import task: %w", err)
	}

	return info.ID, nil
}

// EnqueueFullSync schedules a full export sync and returns the task id, which
// callers record as the integration's in-flight task handle.
func (c *Client) EnqueueFullSync(ctx context.Context, payload *tasks.FullSyncPayload) (string, error) {
	task, err := tasks.NewFullSyncTask(payload)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue("low"))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue full sync task: %w", err)
	}

	return info.ID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
