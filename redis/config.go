// Package redis wraps the asynq client and server used to queue and process
// integration sync work.
package redis

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds Redis connection and worker parameters.
type Config struct {
	Host          string
	Port          int
	Password      string
	DB            int
	Workers       int
	MaxRetries    int
	RetryInterval time.Duration
}

// QueuePriorities routes import work below interactive sync traffic.
var QueuePriorities = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

const (
	defaultHost          = "localhost"
	defaultPort          = 6379
	defaultWorkers       = 10
	defaultMaxRetries    = 3
	defaultRetryInterval = 5 * time.Second
)

// NewConfig builds a Config from the environment. REDIS_URL takes precedence
// over the individual REDIS_* variables.
func NewConfig() (*Config, error) {
	cfg := &Config{
		Host:          defaultHost,
		Port:          defaultPort,
		Workers:       defaultWorkers,
		MaxRetries:    defaultMaxRetries,
		RetryInterval: defaultRetryInterval,
	}

	if rawURL := os.Getenv("REDIS_URL"); rawURL != "" {
		if err := cfg.applyURL(rawURL); err != nil {
			return nil, err
		}

		return cfg, nil
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Host = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}

		cfg.Port = p
	}

	cfg.Password = os.Getenv("REDIS_PASSWORD")

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}

		cfg.DB = d
	}

	if workers := os.Getenv("REDIS_WORKERS"); workers != "" {
		w, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_WORKERS: %w", err)
		}

		cfg.Workers = w
	}

	return cfg, nil
}

func (c *Config) applyURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	if u.Hostname() != "" {
		c.Host = u.Hostname()
	}

	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return fmt.Errorf("invalid port in REDIS_URL: %w", err)
		}

		c.Port = p
	}

	if pass, ok := u.User.Password(); ok {
		c.Password = pass
	}

	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		db, err := strconv.Atoi(path)
		if err != nil {
			return fmt.Errorf("invalid db in REDIS_URL: %w", err)
		}

		c.DB = db
	}

	return nil
}

// Addr returns the host:port address for Redis clients.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
