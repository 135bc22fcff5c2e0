package storage

import (
	"fmt"
	"time"

	"csv-share-access/internal/config"

	_ "github.com/lib/pq"
)

func NewPostgresProvider(config *config.Storage) (*SQLProvider, error) {
	if config.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is not set")
	}

	provider, err := NewSQLProvider(config, "postgres", config.Postgres.DSN)
	if err != nil {
		return nil, err
	}

	if config.Postgres.Pool > 0 {
		provider.db.SetMaxOpenConns(config.Postgres.Pool)
		provider.db.SetMaxIdleConns(config.Postgres.Pool)
	}
	provider.db.SetConnMaxLifetime(30 * time.Minute)
	return provider, nil
}
