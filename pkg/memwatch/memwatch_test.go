package memwatch_test

import (
	"context"
	"math"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/prescan/pkg/memwatch"
	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

func fixed(heap int64) func() memwatch.Snapshot {
	return func() memwatch.Snapshot { return memwatch.Snapshot{HeapInuse: heap} }
}

func TestTake(t *testing.T) {
	t.Parallel()

	snap := memwatch.Take()
	assert.Positive(t, snap.HeapInuse)
	assert.Positive(t, snap.TakenAtNS)
}

func TestWatcher_TripsAtSafetyFactor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	below := memwatch.New(100*units.MiB, memwatch.WithSampler(fixed(79*units.MiB)), memwatch.WithSampleEvery(1))
	assert.False(t, below.Check(ctx))
	assert.False(t, below.Tripped())

	above := memwatch.New(100*units.MiB, memwatch.WithSampler(fixed(81*units.MiB)), memwatch.WithSampleEvery(1))
	assert.True(t, above.Check(ctx))
	assert.True(t, above.Tripped())
}

func TestWatcher_StaysTripped(t *testing.T) {
	t.Parallel()

	heap := int64(90 * units.MiB)
	w := memwatch.New(100*units.MiB,
		memwatch.WithSampler(func() memwatch.Snapshot { return memwatch.Snapshot{HeapInuse: heap} }),
		memwatch.WithSampleEvery(1))

	assert.True(t, w.Check(context.Background()))

	heap = 0
	assert.True(t, w.Check(context.Background()))
}

func TestWatcher_SamplesPeriodically(t *testing.T) {
	t.Parallel()

	samples := 0
	w := memwatch.New(units.GiB, memwatch.WithSampleEvery(3), memwatch.WithSampler(func() memwatch.Snapshot {
		samples++

		return memwatch.Snapshot{}
	}))

	for range 9 {
		w.Check(context.Background())
	}

	assert.Equal(t, 3, samples)
}

func TestParseMemTotal(t *testing.T) {
	t.Parallel()

	meminfo := []byte("MemFree:         1024 kB\nMemTotal:       16384 kB\nBuffers: 0 kB\n")
	assert.Equal(t, int64(16*units.MiB), memwatch.ParseMemTotal(meminfo))

	assert.Equal(t, int64(2048), memwatch.ParseMemTotal([]byte("MemTotal: 2048")))
	assert.Zero(t, memwatch.ParseMemTotal([]byte("MemTotal: lots kB")))
	assert.Zero(t, memwatch.ParseMemTotal([]byte("MemTotal:")))
	assert.Zero(t, memwatch.ParseMemTotal([]byte("MemFree: 1 kB")))
}

func TestBudgetFromTotal(t *testing.T) {
	t.Parallel()

	assert.Zero(t, memwatch.BudgetFromTotal(0))
	assert.Equal(t, int64(3*units.GiB), memwatch.BudgetFromTotal(6*units.GiB))
	assert.Equal(t, int64(memwatch.DefaultBudgetCap), memwatch.BudgetFromTotal(64*units.GiB))
}

func TestNew_DefaultsToSystemMemory(t *testing.T) {
	t.Parallel()

	if debug.SetMemoryLimit(-1) != math.MaxInt64 {
		t.Skip("GOMEMLIMIT takes precedence over system memory")
	}

	w := memwatch.New(0,
		memwatch.WithSystemMemory(func() int64 { return 6 * units.GiB }),
		memwatch.WithSampler(fixed(units.TiB)),
		memwatch.WithSampleEvery(1))

	assert.Equal(t, int64(3*units.GiB), w.Budget())
	assert.True(t, w.Check(context.Background()))
}

func TestNew_UnknownMemoryNeverTrips(t *testing.T) {
	t.Parallel()

	if debug.SetMemoryLimit(-1) != math.MaxInt64 {
		t.Skip("GOMEMLIMIT takes precedence over system memory")
	}

	w := memwatch.New(0,
		memwatch.WithSystemMemory(func() int64 { return 0 }),
		memwatch.WithSampler(fixed(units.TiB)),
		memwatch.WithSampleEvery(1))

	assert.Zero(t, w.Budget())
	assert.False(t, w.Check(context.Background()))
}

func TestNew_ExplicitBudgetWins(t *testing.T) {
	t.Parallel()

	w := memwatch.New(100*units.MiB, memwatch.WithSystemMemory(func() int64 { return 64 * units.GiB }))
	assert.Equal(t, int64(100*units.MiB), w.Budget())
}
