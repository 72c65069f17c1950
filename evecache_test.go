package evecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/evedmv-cache/config"
)

func testLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With(
		slog.String("service", "evecache"),
		slog.String("env", "test"),
	)
}

func testCache(t *testing.T) (*Cache, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	c := newWithClock(context.Background(), nil, testLogger(), nil, mock)
	t.Cleanup(func() { _ = c.Close() })
	return c, mock
}

func TestPutThenGetRespectsTTL(t *testing.T) {
	c, mock := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	c.Set("intel", "character:2112", "Zarzakh Widow", 10*time.Second)

	got, hit := c.Get("intel", "character:2112")
	require.True(t, hit)
	require.Equal(t, "Zarzakh Widow", got)

	mock.Add(10 * time.Second)

	_, hit = c.Get("intel", "character:2112")
	require.False(t, hit)
}

func TestSetWithoutTTLUsesInstanceDefault(t *testing.T) {
	c, mock := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: 30 * time.Second, MaxSize: 100, CleanupInterval: -1})

	c.Set("intel", "k", "v", 0)

	mock.Add(29 * time.Second)
	_, hit := c.Get("intel", "k")
	require.True(t, hit)

	mock.Add(time.Second)
	_, hit = c.Get("intel", "k")
	require.False(t, hit)
}

func TestGetOrComputeHitShortCircuits(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	var invokes uint64
	for i := 0; i < 1000; i++ {
		got, err := c.GetOrCompute("intel", "threat:998877", func() (any, error) {
			atomic.AddUint64(&invokes, 1)
			return 42, nil
		}, 0)
		require.NoError(t, err)
		require.Equal(t, 42, got)
	}

	require.Equal(t, uint64(1), atomic.LoadUint64(&invokes))
}

func TestGetOrComputeMissPopulates(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	got, err := c.GetOrCompute("intel", "threat:42", func() (any, error) { return 42, nil }, 0)
	require.NoError(t, err)
	require.Equal(t, 42, got)

	cached, hit := c.Get("intel", "threat:42")
	require.True(t, hit)
	require.Equal(t, 42, cached)
}

func TestGetOrComputeErrPropagatesAndCachesNothing(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	boom := errors.New("esi timeout")
	var invokes uint64
	for i := 0; i < 10; i++ {
		_, err := c.GetOrCompute("intel", "threat:bad", func() (any, error) {
			atomic.AddUint64(&invokes, 1)
			return nil, boom
		}, 0)
		require.ErrorIs(t, err, boom)
	}

	require.Equal(t, uint64(10), atomic.LoadUint64(&invokes))
	_, hit := c.Get("intel", "threat:bad")
	require.False(t, hit)
}

func TestSizeBoundNeverExceeded(t *testing.T) {
	c, _ := testCache(t)
	const maxSize = 50
	c.Start("hot", &config.InstanceCfg{TTL: time.Minute, MaxSize: maxSize, CleanupInterval: -1})

	for i := 0; i < maxSize+20; i++ {
		c.Set("hot", fmt.Sprintf("system:%d", i), i, 0)
		require.LessOrEqual(t, c.Len("hot"), int64(maxSize))
	}
}

func TestEvictionDropsSoonestExpiryFirst(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: 5 * time.Second, MaxSize: 3, CleanupInterval: -1})

	c.Set("intel", "a", 1, time.Second)
	c.Set("intel", "b", 2, 2*time.Second)
	c.Set("intel", "c", 3, 3*time.Second)
	require.Equal(t, int64(3), c.Len("intel"))

	// max_size/10 floors to zero; the policy still evicts one entry.
	c.Set("intel", "d", 4, 4*time.Second)
	require.Equal(t, int64(3), c.Len("intel"))

	_, hit := c.Get("intel", "a")
	require.False(t, hit)
	for _, key := range []string{"b", "c", "d"} {
		_, hit = c.Get("intel", key)
		require.True(t, hit, "expected %q to survive eviction", key)
	}
}

func TestInvalidatePattern(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	c.Set("intel", "user_1", 1, 0)
	c.Set("intel", "user_2", 2, 0)
	c.Set("intel", "order_1", 3, 0)

	removed := c.InvalidatePattern("intel", "user_*")
	require.Equal(t, 2, removed)

	_, hit := c.Get("intel", "user_1")
	require.False(t, hit)
	_, hit = c.Get("intel", "user_2")
	require.False(t, hit)
	_, hit = c.Get("intel", "order_1")
	require.True(t, hit)
}

func TestClearIsIsolatedPerInstance(t *testing.T) {
	c, _ := testCache(t)
	c.Start("instance_a", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})
	c.Start("instance_b", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	c.Set("instance_a", "k", "a", 0)
	c.Set("instance_b", "k", "b", 0)

	c.Clear("instance_a")

	require.Equal(t, int64(0), c.Len("instance_a"))
	got, hit := c.Get("instance_b", "k")
	require.True(t, hit)
	require.Equal(t, "b", got)
}

func TestReaperPurgesWithoutReads(t *testing.T) {
	c, mock := testCache(t)
	const interval = 10 * time.Millisecond
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: interval})

	c.Set("intel", "short-lived", 1, time.Millisecond)
	require.Equal(t, int64(1), c.Len("intel"))

	// Drive mock time forward until a sweep fires; no Get is ever issued.
	require.Eventually(t, func() bool {
		mock.Add(interval)
		return c.Len("intel") == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUnknownInstanceIsSoft(t *testing.T) {
	c, _ := testCache(t)

	_, hit := c.Get("ghost", "k")
	require.False(t, hit)

	c.Set("ghost", "k", 1, 0)
	c.SetMany("ghost", map[string]any{"k": 1}, 0)
	c.Delete("ghost", "k")
	c.Clear("ghost")
	require.Equal(t, 0, c.InvalidatePattern("ghost", "*"))
	require.Equal(t, Stats{}, c.InstanceStats("ghost"))
	require.Equal(t, int64(0), c.Len("ghost"))

	found, missing := c.GetMany("ghost", []string{"a", "b"})
	require.Empty(t, found)
	require.Equal(t, []string{"a", "b"}, missing)

	// The computation still runs: cache unavailability degrades to
	// recompute-every-time, never to an error.
	got, err := c.GetOrCompute("ghost", "k", func() (any, error) { return 7, nil }, 0)
	require.NoError(t, err)
	require.Equal(t, 7, got)
	_, hit = c.Get("ghost", "k")
	require.False(t, hit)
}

func TestGetManyPartitionsKeys(t *testing.T) {
	c, _ := testCache(t)
	c.Start("names", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	c.Set("names", "character:1", "A", 0)
	c.Set("names", "character:3", "C", 0)

	found, missing := c.GetMany("names", []string{"character:1", "character:2", "character:3", "character:4"})
	require.Equal(t, map[string]any{"character:1": "A", "character:3": "C"}, found)
	require.ElementsMatch(t, []string{"character:2", "character:4"}, missing)
}

func TestSetManySharesOneExpiry(t *testing.T) {
	c, mock := testCache(t)
	c.Start("names", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	c.SetMany("names", map[string]any{"a": 1, "b": 2, "c": 3}, 10*time.Second)
	require.Equal(t, int64(3), c.Len("names"))

	mock.Add(10 * time.Second)
	found, missing := c.GetMany("names", []string{"a", "b", "c"})
	require.Empty(t, found)
	require.Len(t, missing, 3)
}

func TestCoalesceCollapsesConcurrentMisses(t *testing.T) {
	mock := clock.NewMock()
	c := newWithClock(context.Background(), nil, testLogger(), nil, mock)
	defer c.Close()
	c.Start("analysis", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1, Coalesce: true})

	var invokes uint64
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	const callers = 32
	results := make(chan any, callers)
	failures := make(chan error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.GetOrCompute("analysis", "fleet:doctrine", func() (any, error) {
				atomic.AddUint64(&invokes, 1)
				select {
				case started <- struct{}{}:
				default:
				}
				<-release
				return "armor", nil
			}, 0)
			if err != nil {
				failures <- err
				return
			}
			results <- got
		}()
	}

	<-started
	// All 32 callers are either waiting on the shared flight or will hit
	// the recheck; exactly one computation runs.
	close(release)
	wg.Wait()
	close(results)
	close(failures)

	for err := range failures {
		require.NoError(t, err)
	}
	for got := range results {
		require.Equal(t, "armor", got)
	}
	require.Equal(t, uint64(1), atomic.LoadUint64(&invokes))
}

func TestStartIsIdempotent(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})
	c.Set("intel", "k", 1, 0)

	// A second Start must not reset the running instance.
	c.Start("intel", &config.InstanceCfg{TTL: time.Second, MaxSize: 1, CleanupInterval: -1})

	got, hit := c.Get("intel", "k")
	require.True(t, hit)
	require.Equal(t, 1, got)
}

func TestStartPresetAppliesOverrides(t *testing.T) {
	c, _ := testCache(t)
	c.StartPreset(config.ClassHotData, "tiny", config.WithMaxSize(2), config.WithCleanupInterval(-1))

	c.Set("tiny", "a", 1, 0)
	c.Set("tiny", "b", 2, 0)
	c.Set("tiny", "c", 3, 0)
	require.LessOrEqual(t, c.Len("tiny"), int64(2))
}

func TestInstanceStats(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	c.Set("intel", "k1", "some payload", 0)
	c.Set("intel", "k2", "another payload", 0)

	stats := c.InstanceStats("intel")
	require.Equal(t, int64(2), stats.Entries)
	require.Greater(t, stats.MemBytes, int64(0))
}

func TestConfigDeclaredInstancesStartEagerly(t *testing.T) {
	mock := clock.NewMock()
	cfg := &config.Config{
		Instances: map[string]*config.InstanceCfg{
			"names": {Class: config.ClassHotData, CleanupInterval: -1},
		},
	}
	c := newWithClock(context.Background(), cfg, testLogger(), nil, mock)
	defer c.Close()

	c.Set("names", "k", "v", 0)
	got, hit := c.Get("names", "k")
	require.True(t, hit)
	require.Equal(t, "v", got)
}

func TestTelemetrySnapshotAggregates(t *testing.T) {
	c, _ := testCache(t)
	c.Start("a", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})
	c.Start("b", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	c.Set("a", "k", 1, 0)
	c.Set("b", "k", 2, 0)
	_, _ = c.Get("a", "k")
	_, _ = c.Get("a", "missing")

	snap := c.TelemetrySnapshot()
	require.Equal(t, int64(2), snap.Entries)
	require.Equal(t, int64(1), snap.Hits)
	require.Equal(t, int64(1), snap.Misses)
	require.Greater(t, snap.MemBytes, int64(0))
}

func TestSnapshotRequiresPersistConfig(t *testing.T) {
	c, _ := testCache(t)
	c.Start("intel", &config.InstanceCfg{TTL: time.Minute, MaxSize: 100, CleanupInterval: -1})

	_, err := c.Snapshot(context.Background(), "intel", JSONCodec{})
	require.ErrorIs(t, err, ErrPersistDisabled)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	mock := clock.NewMock()
	cfg := &config.Config{Persist: &config.PersistCfg{Dir: t.TempDir()}}
	c := newWithClock(context.Background(), cfg, testLogger(), nil, mock)
	defer c.Close()
	c.Start("api", &config.InstanceCfg{TTL: time.Hour, MaxSize: 100, CleanupInterval: -1})

	c.Set("api", "esi:/universe/systems/30000142", map[string]any{"name": "Jita"}, time.Hour)
	c.Set("api", "esi:/universe/systems/30002187", map[string]any{"name": "Amarr"}, time.Minute)

	path, err := c.Snapshot(context.Background(), "api", JSONCodec{})
	require.NoError(t, err)
	require.FileExists(t, path)

	// A minute later only the hour-long entry still has residual TTL.
	mock.Add(2 * time.Minute)
	c.Clear("api")

	restored, err := c.Restore(context.Background(), "api", JSONCodec{})
	require.NoError(t, err)
	require.Equal(t, 1, restored)

	got, hit := c.Get("api", "esi:/universe/systems/30000142")
	require.True(t, hit)
	require.Equal(t, map[string]any{"name": "Jita"}, got)
	_, hit = c.Get("api", "esi:/universe/systems/30002187")
	require.False(t, hit)
}
