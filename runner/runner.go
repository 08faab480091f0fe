// Package runner parses configuration and assembles the service's run modes.
package runner

import (
	"errors"
	"flag"
	"os"
	"time"
)

const (
	RunModeWeb = iota + 1
	RunModeWorker
)

var ErrInvalidRunMode = errors.New("invalid run mode")

type Config struct {
	RunMode           int
	Addr              string
	Dsn               string
	Debug             bool
	MaxMessageAge     time.Duration
	DataFolder        string
	AwsAccessKey      string
	AwsSecretKey      string
	AwsRegion         string
	S3Bucket          string
	PocketConsumerKey string
	ImportLeaseTTL    time.Duration
}

func ParseConfig() *Config {
	cfg := Config{}

	var mode string

	flag.StringVar(&mode, "mode", "web", "run mode: web (http service) or worker (task queue consumer)")
	flag.StringVar(&cfg.Addr, "addr", ":8080", "http listen address")
	flag.StringVar(&cfg.Dsn, "dsn", os.Getenv("DATABASE_URL"), "database connection string")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	flag.DurationVar(&cfg.MaxMessageAge, "max-message-age", time.Hour, "push messages older than this are discarded")
	flag.StringVar(&cfg.DataFolder, "data-folder", "imports", "local staging folder used when no S3 bucket is configured")
	flag.StringVar(&cfg.AwsAccessKey, "aws-access-key", os.Getenv("AWS_ACCESS_KEY"), "AWS access key")
	flag.StringVar(&cfg.AwsSecretKey, "aws-secret-key", os.Getenv("AWS_SECRET_KEY"), "AWS secret key")
	flag.StringVar(&cfg.AwsRegion, "aws-region", os.Getenv("AWS_REGION"), "AWS region")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", os.Getenv("S3_BUCKET"), "S3 bucket for import staging files")
	flag.StringVar(&cfg.PocketConsumerKey, "pocket-consumer-key", os.Getenv("POCKET_CONSUMER_KEY"), "Pocket API consumer key")
	flag.DurationVar(&cfg.ImportLeaseTTL, "import-lease-ttl", 30*time.Minute, "max lifetime of an import run's lease")

	flag.Parse()

	switch mode {
	case "worker":
		cfg.RunMode = RunModeWorker
	default:
		cfg.RunMode = RunModeWeb
	}

	return &cfg
}
