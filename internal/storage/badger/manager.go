package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	queue    interfaces.AnalysisQueueStorage
	universe interfaces.UniverseStorage
	logger   arbor.ILogger
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		queue:    NewQueueStorage(db, logger),
		universe: NewUniverseStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// AnalysisQueueStorage returns the queue storage interface
func (m *Manager) AnalysisQueueStorage() interfaces.AnalysisQueueStorage {
	return m.queue
}

// UniverseStorage returns the universe storage interface
func (m *Manager) UniverseStorage() interfaces.UniverseStorage {
	return m.universe
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
