package database

import (
	"fmt"
	"os"
	"path/filepath"

	"wadlib/internal/config"
	"wadlib/internal/wadlib"
)

// HistoryFile is the database file name inside the data directory.
const HistoryFile = "history.db"

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock wadlib.Clock) (wadlib.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return open(filepath.Join(cfg.DataDir, HistoryFile), clock)
	case "memory":
		return open(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// open keeps a failed open from yielding a non-nil interface.
func open(path string, clock wadlib.Clock) (wadlib.Database, error) {
	db, err := NewSQLiteDatabase(path, clock)
	if err != nil {
		return nil, err
	}
	return db, nil
}
