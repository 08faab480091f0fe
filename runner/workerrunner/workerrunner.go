// Package workerrunner consumes queued integration sync tasks.
package workerrunner

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/pagevault/libsync/redis"
	"github.com/pagevault/libsync/redis/tasks"
	"github.com/pagevault/libsync/runner"
)

type WorkerRunner struct {
	core   *runner.Core
	server *redis.Server
	mux    *asynq.ServeMux
}

func New(ctx context.Context, cfg *runner.Config) (*WorkerRunner, error) {
	core, err := runner.NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisCfg, err := redis.NewConfig()
	if err != nil {
		return nil, err
	}

	handler := tasks.NewHandler(core.Pipeline, core.Engine, core.Logger)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeImport, handler)
	mux.Handle(tasks.TypeFullSync, handler)

	return &WorkerRunner{
		core:   core,
		server: redis.NewServer(redisCfg, core.Logger),
		mux:    mux,
	}, nil
}

func (r *WorkerRunner) Run(ctx context.Context) error {
	return r.server.Run(ctx, r.mux)
}

func (r *WorkerRunner) Close(_ context.Context) error {
	return r.core.Close()
}
