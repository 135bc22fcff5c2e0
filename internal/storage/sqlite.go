package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"csv-share-access/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

func NewSQLiteProvider(config *config.Storage) (*SQLProvider, error) {
	path := config.SQLite.Path
	if path == "" {
		return nil, fmt.Errorf("sqlite path is not set")
	}

	dsn := "file::memory:?_foreign_keys=on"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	}

	provider, err := NewSQLProvider(config, "sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers. A single connection keeps the conditional
	// updates free of SQLITE_BUSY and keeps :memory: databases shared.
	provider.db.SetMaxOpenConns(1)
	return provider, nil
}
