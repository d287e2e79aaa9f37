package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// UniverseStorage implements UniverseStorage for Badger
type UniverseStorage struct {
	queue  *QueueStorage // shares the conflict-retrying update helper
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.UniverseStorage = (*UniverseStorage)(nil)

// NewUniverseStorage creates a new UniverseStorage instance
func NewUniverseStorage(db *BadgerDB, logger arbor.ILogger) *UniverseStorage {
	return &UniverseStorage{
		queue:  NewQueueStorage(db, logger),
		db:     db,
		logger: logger,
	}
}

func (s *UniverseStorage) GetUniverseRow(ctx context.Context, key string) (*models.UniverseRow, error) {
	var row models.UniverseRow
	if err := s.db.Store().Get(key, &row); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get universe row: %w", err)
	}
	return &row, nil
}

// PatchUniverseRow applies patch to the row under key, creating it if absent
func (s *UniverseStorage) PatchUniverseRow(ctx context.Context, key string, patch *models.UniversePatch) error {
	err := s.queue.update(func(txn *badger.Txn) error {
		var row models.UniverseRow
		err := s.db.Store().TxGet(txn, key, &row)
		switch {
		case errors.Is(err, badgerhold.ErrNotFound):
			row = models.UniverseRow{Key: key}
		case err != nil:
			return err
		}

		patch.ApplyTo(&row)
		row.UpdatedAt = s.queue.now()
		return s.db.Store().TxUpsert(txn, key, row)
	})
	if err != nil {
		return fmt.Errorf("failed to patch universe row: %w", err)
	}

	s.logger.Debug().Str("key", key).Msg("BadgerDB: Universe row patched")
	return nil
}

// SaveUniverseRow replaces a row wholesale. Used to seed the universe.
func (s *UniverseStorage) SaveUniverseRow(ctx context.Context, row *models.UniverseRow) error {
	if row.Key == "" {
		return fmt.Errorf("universe row key is required")
	}
	row.UpdatedAt = s.queue.now()
	if err := s.db.Store().Upsert(row.Key, *row); err != nil {
		return fmt.Errorf("failed to save universe row: %w", err)
	}
	return nil
}
