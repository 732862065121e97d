package warehouse_test

import (
	"context"
	"errors"
	"testing"

	"medallion/internal/table"
	"medallion/internal/warehouse"
	"medallion/internal/warehouse/warehousetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// TestLoad_Loaded reports the row count and logs at info.
func TestLoad_Loaded(t *testing.T) {
	t.Parallel()

	fake := warehousetest.New()
	log, logs := observed()
	res := warehouse.NewLoader(fake, log, "test").Load(context.Background(), smallTable(), silver)

	require.True(t, res.OK())
	assert.NoError(t, res.Err())
	assert.EqualValues(t, 2, res.RowCount)
	assert.Equal(t, silver, res.Table)
	assert.Equal(t, 2, fake.Table(silver).Len())

	entries := logs.FilterMessage("table loaded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

// TestLoad_FailureIsAValue captures backend errors without returning them.
func TestLoad_FailureIsAValue(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota exceeded")
	fake := warehousetest.New()
	fake.ReplaceHook = func(table.Name) error { return boom }
	log, logs := observed()

	res := warehouse.NewLoader(fake, log, "test").Load(context.Background(), smallTable(), silver)
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err(), boom)
	assert.Equal(t, silver, res.Failure.Table)
	assert.Zero(t, res.RowCount)
	assert.Contains(t, res.Failure.Error(), "proj.silver_layer.used_cars")
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

// TestLoad_RecoversFromPanics turns a panicking backend into LoadFailed.
func TestLoad_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	fake := warehousetest.New()
	fake.ReplaceHook = func(table.Name) error { panic("driver bug") }

	var res warehouse.LoadResult
	require.NotPanics(t, func() {
		res = warehouse.NewLoader(fake, nil, "test").Load(context.Background(), smallTable(), silver)
	})
	require.False(t, res.OK())
	assert.Contains(t, res.Err().Error(), "panic: driver bug")
}

func TestLoad_NilTable(t *testing.T) {
	t.Parallel()

	res := warehouse.NewLoader(warehousetest.New(), nil, "test").Load(context.Background(), nil, silver)
	assert.False(t, res.OK())
}

// TestLoad_InvalidTableNeverReachesWarehouse rejects rows that do not match
// the schema before anything is replaced.
func TestLoad_InvalidTableNeverReachesWarehouse(t *testing.T) {
	t.Parallel()

	tb := smallTable()
	tb.Rows[1] = []any{"2", "not a float"}
	fake := warehousetest.New()

	res := warehouse.NewLoader(fake, nil, "test").Load(context.Background(), tb, silver)
	require.False(t, res.OK())
	assert.ErrorContains(t, res.Err(), `column "price" expects`)
	assert.Empty(t, fake.Replaced())
	assert.Nil(t, fake.Table(silver))
}
