package config

type Storage struct {
	// "sqlite" or "postgres"
	Type     string          `mapstructure:"type"`
	SQLite   SQLiteStorage   `mapstructure:"sqlite"`
	Postgres PostgresStorage `mapstructure:"postgres"`
}

type SQLiteStorage struct {
	Path string `mapstructure:"path,omitempty"`
}

type PostgresStorage struct {
	DSN  string `mapstructure:"dsn"`
	Pool int    `mapstructure:"pool"`
}

// BlobStorage holds ciphertext. The metadata lives in Storage.
type BlobStorage struct {
	Path string `mapstructure:"path"`
}
