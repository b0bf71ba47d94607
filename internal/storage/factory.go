// Package storage selects and constructs the persistence backend.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/storage/memory"
	"github.com/bobmcallan/folio/internal/storage/postgres"
	"github.com/bobmcallan/folio/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendMemory    = "memory"
	BackendSurrealDB = "surrealdb"
	BackendPostgres  = "postgres"
)

// NewStorageManager creates a storage manager based on the configuration.
// Supported backends: "memory" (default), "surrealdb", "postgres".
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.StorageConfig) (interfaces.StorageManager, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Backend))
	if backend == "" {
		backend = BackendMemory
	}

	switch backend {
	case BackendMemory:
		logger.Info().Msg("Using in-memory storage (data is not persisted)")
		return memory.NewStore(logger), nil

	case BackendSurrealDB:
		return surrealdb.NewManager(ctx, logger, &config.SurrealDB)

	case BackendPostgres:
		return postgres.NewManager(ctx, logger, &config.Postgres)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, surrealdb, postgres)", backend)
	}
}
