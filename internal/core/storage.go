package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"grimoire/internal/infra/persistence/memory"
	"grimoire/internal/infra/persistence/postgres"
	"grimoire/internal/infra/persistence/sqlite"
	"grimoire/pkg/domain"
)

// StorageDriver identifies a snapshot storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-process only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Environment variables read by StorageConfigFromEnv.
const (
	EnvStorageDriver = "GRIMOIRE_STORAGE_DRIVER"
	EnvSQLitePath    = "GRIMOIRE_SQLITE_PATH"
	EnvPostgresDSN   = "GRIMOIRE_POSTGRES_DSN"
)

// StorageConfig selects and parameterises a snapshot backend. Empty fields
// fall back to each driver's defaults.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageConfigFromEnv reads the storage configuration from the process
// environment. The driver defaults to memory.
func StorageConfigFromEnv() StorageConfig {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvStorageDriver))))
	if driver == "" {
		driver = StorageMemory
	}
	return StorageConfig{
		Driver:      driver,
		SQLitePath:  os.Getenv(EnvSQLitePath),
		PostgresDSN: os.Getenv(EnvPostgresDSN),
	}
}

// Open constructs the configured backend.
func (c StorageConfig) Open(ctx context.Context) (domain.SnapshotStore, error) {
	switch c.Driver {
	case StorageMemory, "":
		return memory.NewSnapshotStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, c.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Driver)
	}
}

// OpenSnapshotStore opens the backend described by the environment:
//
//	GRIMOIRE_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	GRIMOIRE_SQLITE_PATH: path to sqlite file (default ./grimoire.db)
//	GRIMOIRE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenSnapshotStore(ctx context.Context) (domain.SnapshotStore, error) {
	return StorageConfigFromEnv().Open(ctx)
}
