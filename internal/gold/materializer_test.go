package gold_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"medallion/internal/gold"
	"medallion/internal/table"
	"medallion/internal/warehouse/sqlite"
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

func TestMaterialize_AllSucceed(t *testing.T) {
	t.Parallel()

	fake := warehousetest.New()
	log, logs := observed()
	res := gold.New(fake, gold.Options{}, log).Materialize(context.Background(), silver)

	require.True(t, res.OK())
	require.Len(t, res.Succeeded, 5)
	assert.Equal(t, table.GoldName("proj", "avg_mileage_by_fuel_type"), res.Succeeded[0])

	stmts := fake.Statements()
	require.Len(t, stmts, 6)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "gold_layer"`, stmts[0], "layer is created before dispatch")
	assert.Equal(t, 5, logs.FilterMessage("aggregation materialized").Len())
}

// TestMaterialize_OneFailureDoesNotStopOthers reports a single failure while
// the remaining tables are still replaced.
func TestMaterialize_OneFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	boom := errors.New(`column "lat" not found`)
	fake := warehousetest.New()
	fake.ExecHook = func(stmt string) error {
		if strings.Contains(stmt, `"gold_layer"."localization"`) {
			return boom
		}
		return nil
	}
	log, logs := observed()
	res := gold.New(fake, gold.Options{}, log).Materialize(context.Background(), silver)

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, "localization", f.StatementID)
	assert.Equal(t, table.GoldName("proj", "localization"), f.Table)
	assert.ErrorIs(t, f, boom)
	assert.Len(t, res.Succeeded, 4)

	errLogs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errLogs, 1)
	assert.Equal(t, "aggregation failed", errLogs[0].Message)
}

// TestMaterialize_FailuresInStatementOrder sorts failures regardless of
// completion order.
func TestMaterialize_FailuresInStatementOrder(t *testing.T) {
	t.Parallel()

	fake := warehousetest.New()
	fake.ExecHook = func(stmt string) error {
		switch {
		case strings.Contains(stmt, "prices_for_year"):
			return errors.New("late")
		case strings.Contains(stmt, "avg_mileage_by_fuel_type"):
			time.Sleep(20 * time.Millisecond)
			return errors.New("early")
		}
		return nil
	}
	res := gold.New(fake, gold.Options{}, nil).Materialize(context.Background(), silver)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, "avg_mileage_by_fuel_type", res.Failures[0].StatementID)
	assert.Equal(t, "prices_for_year", res.Failures[1].StatementID)
}

func TestMaterialize_SchemaFailureFailsEverything(t *testing.T) {
	t.Parallel()

	fake := warehousetest.New()
	fake.ExecHook = func(stmt string) error {
		if strings.HasPrefix(stmt, "CREATE SCHEMA") {
			return errors.New("access denied")
		}
		return nil
	}
	res := gold.New(fake, gold.Options{}, nil).Materialize(context.Background(), silver)

	assert.Empty(t, res.Succeeded)
	require.Len(t, res.Failures, 5)
	for _, f := range res.Failures {
		assert.ErrorContains(t, f, "access denied")
	}
	assert.Len(t, fake.Statements(), 1)
}

func TestMaterialize_PanicIsAFailure(t *testing.T) {
	t.Parallel()

	fake := warehousetest.New()
	fake.ExecHook = func(stmt string) error {
		if strings.Contains(stmt, "price_by_mileage") {
			panic("driver bug")
		}
		return nil
	}
	res := gold.New(fake, gold.Options{}, nil).Materialize(context.Background(), silver)
	require.Len(t, res.Failures, 1)
	assert.ErrorContains(t, res.Failures[0], "driver bug")
}

// TestMaterialize_RunsConcurrently holds every statement until all five are
// in flight.
func TestMaterialize_RunsConcurrently(t *testing.T) {
	t.Parallel()

	var (
		inflight int32
		once     sync.Once
		all      = make(chan struct{})
	)
	fake := warehousetest.New()
	fake.ExecHook = func(stmt string) error {
		if strings.HasPrefix(stmt, "CREATE SCHEMA") {
			return nil
		}
		if atomic.AddInt32(&inflight, 1) == 5 {
			once.Do(func() { close(all) })
		}
		select {
		case <-all:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("statements were not dispatched concurrently")
		}
	}
	res := gold.New(fake, gold.Options{}, nil).Materialize(context.Background(), silver)
	assert.True(t, res.OK(), "%v", res.Failures)
}

func TestMaterialize_WorkerLimit(t *testing.T) {
	t.Parallel()

	var inflight, peak int32
	fake := warehousetest.New()
	fake.ExecHook = func(string) error {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return nil
	}
	res := gold.New(fake, gold.Options{Workers: 2}, nil).Materialize(context.Background(), silver)
	assert.True(t, res.OK())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

// silverWithoutLat builds a Silver-shaped table that lacks the lat column.
func silverWithoutLat() *table.Table {
	tb := table.New(table.Schema{
		{Name: "id", Kind: table.String},
		{Name: "price", Kind: table.Float64},
		{Name: "year", Kind: table.Float64, Nullable: true},
		{Name: "manufacturer", Kind: table.String},
		{Name: "fuel", Kind: table.String},
		{Name: "odometer", Kind: table.Float64, Nullable: true},
		{Name: "long", Kind: table.Float64, Nullable: true},
	}, 16)
	rows := []struct {
		maker, fuel string
		price, odo  float64
	}{
		{"ford", "gas", 10000, 1000},
		{"ford", "gas", 20000, 2000},
		{"ford", "diesel", 30000, 3000},
		{"ford", "gas", 40000, 4000},
		{"toyota", "gas", 5000, 500},
		{"toyota", "hybrid", 7000, 700},
		{"toyota", "hybrid", 9000, 900},
		{"chevrolet", "gas", 1000, 100},
		{"chevrolet", "gas", 2000, 200},
		{"chevrolet", "gas", 3000, 300},
		{"honda", "gas", 4000, 400},
		{"honda", "gas", 6000, 600},
		{"bmw", "gas", 50000, 5000},
		{"bmw", "gas", 60000, 6000},
		{"audi", "gas", 70000, 7000},
	}
	for i, r := range rows {
		tb.Append([]any{string(rune('a' + i)), r.price, 2015.0, r.maker, r.fuel, r.odo, -100.5})
	}
	return tb
}

// TestMaterialize_SQLite runs the real statements: localization references
// a missing column and fails while the other four tables are built.
func TestMaterialize_SQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	wh, err := sqlite.Open(ctx, t.TempDir()+"/gold.db")
	require.NoError(t, err)
	defer wh.Close()

	_, err = wh.ReplaceTable(ctx, silver, silverWithoutLat())
	require.NoError(t, err)

	res := gold.New(wh, gold.Options{}, nil).Materialize(ctx, silver)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "localization", res.Failures[0].StatementID)
	assert.ErrorContains(t, res.Failures[0], "lat")
	assert.Len(t, res.Succeeded, 4)

	rows, err := wh.DB.QueryContext(ctx,
		`SELECT manufacturer, ads, average_price FROM "gold_layer__avg_price_by_manufacturer" ORDER BY ads DESC, manufacturer`)
	require.NoError(t, err)
	type top struct {
		maker string
		ads   int64
		price float64
	}
	var got []top
	for rows.Next() {
		var r top
		require.NoError(t, rows.Scan(&r.maker, &r.ads, &r.price))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []top{
		{"ford", 4, 25000},
		{"chevrolet", 3, 2000},
		{"toyota", 3, 7000},
		{"bmw", 2, 55000},
		{"honda", 2, 5000},
	}, got)

	var avg float64
	require.NoError(t, wh.DB.QueryRowContext(ctx,
		`SELECT average_mileage FROM "gold_layer__avg_mileage_by_fuel_type" WHERE fuel = 'hybrid'`).Scan(&avg))
	assert.Equal(t, 800.0, avg)

	var n int
	require.NoError(t, wh.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM "gold_layer__price_by_mileage"`).Scan(&n))
	assert.Equal(t, 15, n)

	err = wh.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM "gold_layer__localization"`).Scan(&n)
	assert.Error(t, err, "failed aggregation leaves no table behind")
}
