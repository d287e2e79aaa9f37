package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/storage/badger"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/storage/postgres"
)

// Storage types accepted in [storage].type
const (
	TypePostgres = "postgres"
	TypeBadger   = "badger"
)

// NewStorageManager creates a new storage manager based on config
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Storage.Type {
	case TypePostgres, "":
		return postgres.NewManager(ctx, logger, &config.Storage.Postgres)
	case TypeBadger:
		return badger.NewManager(logger, &config.Storage.Badger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'postgres' or 'badger')", config.Storage.Type)
	}
}
