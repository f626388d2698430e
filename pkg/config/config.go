package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	AuditRetention            time.Duration
	DatabaseBusyTimeout       time.Duration
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseFilePath          string
	DatabaseMaxRetries        int
	Hostname                  string
	JWTSecret                 string
	ServerHost                string
	ServerPort                int
	SyncMaxBatchSize          int
	WorkerInterval            time.Duration
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		AuditRetention:            90 * 24 * time.Hour,
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		Hostname:                  hostname,
		ServerPort:                4780,
		SyncMaxBatchSize:          200,
		WorkerInterval:            15 * time.Minute,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		loadProductionConfig(cfg)
	}

	return cfg, nil
}
