package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

// Manager implements the StorageManager interface for Postgres
type Manager struct {
	pool     *pgxpool.Pool
	queue    *QueueStorage
	universe *UniverseStorage
	logger   arbor.ILogger
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager connects to Postgres and builds the stores
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (*Manager, error) {
	pool, err := Connect(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().Msg("Postgres storage manager initialized")

	return &Manager{
		pool:     pool,
		queue:    NewQueueStorage(pool, logger),
		universe: NewUniverseStorage(pool, logger),
		logger:   logger,
	}, nil
}

// Pool returns the underlying connection pool
func (m *Manager) Pool() *pgxpool.Pool {
	return m.pool
}

func (m *Manager) AnalysisQueueStorage() interfaces.AnalysisQueueStorage {
	return m.queue
}

func (m *Manager) UniverseStorage() interfaces.UniverseStorage {
	return m.universe
}

// Close closes the pool
func (m *Manager) Close() error {
	if m.pool != nil {
		m.pool.Close()
	}
	return nil
}
