// Package webrunner serves the HTTP sync surface.
package webrunner

import (
	"context"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/pagevault/libsync/pubsub"
	"github.com/pagevault/libsync/redis"
	"github.com/pagevault/libsync/runner"
	"github.com/pagevault/libsync/web"
)

type WebRunner struct {
	core   *runner.Core
	server *web.Server
	queue  *redis.Client
}

func New(ctx context.Context, cfg *runner.Config) (*WebRunner, error) {
	core, err := runner.NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		queue     *redis.Client
		scheduler web.SyncScheduler
	)

	if os.Getenv("REDIS_URL") != "" || os.Getenv("REDIS_HOST") != "" {
		redisCfg, err := redis.NewConfig()
		if err != nil {
			return nil, err
		}

		queue = redis.NewClient(redisCfg)
		scheduler = queue
	}

	intake := pubsub.NewIntake(core.Logger, pubsub.WithMaxAge(cfg.MaxMessageAge))
	handler := web.NewIntegrationHandler(intake, core.Engine, core.Pipeline, core.Integrations, scheduler, core.Logger)
	authMW := web.NewAuthMiddleware(verifierFromEnv(), core.Logger)

	server := web.NewServer(web.ServerConfig{
		Addr:    cfg.Addr,
		Handler: handler,
		Auth:    authMW,
		Logger:  core.Logger,
	})

	return &WebRunner{core: core, server: server, queue: queue}, nil
}

func (r *WebRunner) Run(ctx context.Context) error {
	return r.server.Run(ctx)
}

func (r *WebRunner) Close(_ context.Context) error {
	var err error
	if r.queue != nil {
		err = r.queue.Close()
	}

	return multierr.Append(err, r.core.Close())
}

// verifierFromEnv builds the static token map from AUTH_TOKENS
// ("token:userID,token2:userID2"). Production deployments replace this with
// the auth service's verifier.
func verifierFromEnv() web.Verifier {
	verifier := web.StaticVerifier{}

	for _, pair := range strings.Split(os.Getenv("AUTH_TOKENS"), ",") {
		token, userID, ok := strings.Cut(pair, ":")
		if ok && token != "" && userID != "" {
			verifier[token] = userID
		}
	}

	return verifier
}
