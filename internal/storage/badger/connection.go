package badger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
)

// BadgerDB owns the badgerhold store backing the queue and universe tables
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// NewBadgerDB opens the store described by config. In-memory stores ignore
// Path and ResetOnStartup.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	options, err := storeOptions(logger, config)
	if err != nil {
		return nil, err
	}

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %q: %w", config.Path, err)
	}

	logger.Debug().
		Str("path", config.Path).
		Bool("in_memory", config.InMemory).
		Msg("Badger store opened")

	return &BadgerDB{store: store, logger: logger, config: config}, nil
}

func storeOptions(logger arbor.ILogger, config *common.BadgerConfig) (badgerhold.Options, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil

	// JSON instead of gob: universe metrics are free-form maps
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	if config.InMemory {
		options.InMemory = true
		options.Dir = ""
		options.ValueDir = ""
		return options, nil
	}

	if config.ResetOnStartup {
		logger.Warn().Str("path", config.Path).Msg("Resetting badger store (reset_on_startup)")
		if err := os.RemoveAll(config.Path); err != nil {
			return options, fmt.Errorf("failed to reset badger store: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return options, fmt.Errorf("failed to create badger parent directory: %w", err)
	}

	options.Dir = config.Path
	options.ValueDir = config.Path
	return options, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the store
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}
