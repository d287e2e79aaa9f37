package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/queue"
)

func TestNew_MissingDatabaseURLIsConfigurationError(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "postgres"

	_, err := New(context.Background(), cfg, arbor.NewLogger())

	var cerr *common.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "storage.postgres.url", cerr.Field)
}

func TestNew_BadgerWiresPipeline(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "badger"
	cfg.Storage.Badger.InMemory = true
	cfg.Analysis.AddonsEnabled = true

	a, err := New(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Processor)
	assert.NotNil(t, a.Worker)
	assert.NotNil(t, a.AddonPipeline)
	assert.NotNil(t, a.SchedulerService)
}

func TestApp_RunOnEmptyQueue(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Type = "badger"
	cfg.Storage.Badger.InMemory = true

	a, err := New(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.AddonPipeline)

	summary, err := a.Worker.Run(context.Background(), 0, queue.RunSourceManual)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 5, summary.MaxJobs)
	assert.Empty(t, summary.Jobs)
}
