package redis

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server wraps the asynq worker server.
type Server struct {
	server *asynq.Server
}

func NewServer(cfg *Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: cfg.Workers,
			Queues:      QueuePriorities,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				if n >= cfg.MaxRetries {
					logger.Warn("task exhausted retries",
						zap.String("type", task.Type()),
						zap.Error(err),
					)
				}

				delay := time.Duration(1<<uint(n)) * time.Second
				if delay > cfg.RetryInterval {
					delay = cfg.RetryInterval
				}

				return delay
			},
			StrictPriority: true,
		},
	)

	return &Server{server: srv}
}

// Run blocks processing tasks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, mux *asynq.ServeMux) error {
	if err := s.server.Start(mux); err != nil {
		return err
	}

	<-ctx.Done()
	s.server.Shutdown()

	return ctx.Err()
}
