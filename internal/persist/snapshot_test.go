package persist

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	value     any
	expiresAt time.Time
}

type fakeTarget struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[string]fakeEntry
}

func newFakeTarget(clk clock.Clock) *fakeTarget {
	return &fakeTarget{clk: clk, entries: make(map[string]fakeEntry)}
}

func (f *fakeTarget) Walk(fn func(key string, value any, expiresAt time.Time) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, e := range f.entries {
		if !fn(key, e.value, e.expiresAt) {
			return
		}
	}
}

func (f *fakeTarget) Set(key string, value any, ttl time.Duration) {
	f.mu.Lock()
	f.entries[key] = fakeEntry{value: value, expiresAt: f.clk.Now().Add(ttl)}
	f.mu.Unlock()
}

func TestDumpLoadRoundTrip(t *testing.T) {
	mock := clock.NewMock()
	dir := t.TempDir()

	src := newFakeTarget(mock)
	src.Set("a", map[string]any{"name": "Jita"}, time.Hour)
	src.Set("b", "plain string", time.Hour)

	path, err := Dump(context.Background(), dir, "api", src, JSONCodec{}, mock, 0)
	require.NoError(t, err)
	require.FileExists(t, path)

	dst := newFakeTarget(mock)
	restored, err := Load(context.Background(), dir, "api", dst, JSONCodec{}, mock)
	require.NoError(t, err)
	require.Equal(t, 2, restored)
	require.Equal(t, map[string]any{"name": "Jita"}, dst.entries["a"].value)
	require.Equal(t, "plain string", dst.entries["b"].value)
}

func TestLoadSkipsExpiredAndKeepsResidualTTL(t *testing.T) {
	mock := clock.NewMock()
	dir := t.TempDir()

	src := newFakeTarget(mock)
	src.Set("long", 1, time.Hour)
	src.Set("short", 2, time.Minute)

	_, err := Dump(context.Background(), dir, "api", src, JSONCodec{}, mock, 0)
	require.NoError(t, err)

	mock.Add(30 * time.Minute)

	dst := newFakeTarget(mock)
	restored, err := Load(context.Background(), dir, "api", dst, JSONCodec{}, mock)
	require.NoError(t, err)
	require.Equal(t, 1, restored)

	e, ok := dst.entries["long"]
	require.True(t, ok)
	// residual, not refreshed: ~30 minutes remain of the original hour
	require.Equal(t, mock.Now().Add(30*time.Minute), e.expiresAt)
	_, ok = dst.entries["short"]
	require.False(t, ok)
}

func TestLoadWithoutSnapshot(t *testing.T) {
	mock := clock.NewMock()
	dst := newFakeTarget(mock)

	_, err := Load(context.Background(), t.TempDir(), "api", dst, JSONCodec{}, mock)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestDumpVersionsIncrement(t *testing.T) {
	mock := clock.NewMock()
	dir := t.TempDir()
	src := newFakeTarget(mock)
	src.Set("k", 1, time.Hour)

	first, err := Dump(context.Background(), dir, "api", src, JSONCodec{}, mock, 0)
	require.NoError(t, err)
	second, err := Dump(context.Background(), dir, "api", src, JSONCodec{}, mock, 0)
	require.NoError(t, err)

	require.Contains(t, first, "v0")
	require.Contains(t, second, "v1")
}

func TestDumpPrunesOldVersions(t *testing.T) {
	mock := clock.NewMock()
	dir := t.TempDir()
	src := newFakeTarget(mock)
	src.Set("k", 1, time.Hour)

	for i := 0; i < 4; i++ {
		_, err := Dump(context.Background(), dir, "api", src, JSONCodec{}, mock, 2)
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "api"))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// The newest version must still load.
	dst := newFakeTarget(mock)
	restored, err := Load(context.Background(), dir, "api", dst, JSONCodec{}, mock)
	require.NoError(t, err)
	require.Equal(t, 1, restored)
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	mock := clock.NewMock()
	dir := t.TempDir()
	src := newFakeTarget(mock)
	src.Set("k", map[string]any{"payload": "data"}, time.Hour)

	path, err := Dump(context.Background(), dir, "api", src, JSONCodec{}, mock, 0)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	dst := newFakeTarget(mock)
	_, err = Load(context.Background(), dir, "api", dst, JSONCodec{}, mock)
	require.Error(t, err)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec{}

	data, err := codec.Encode(map[string]any{"alliance": "Goonswarm", "members": float64(30000)})
	require.NoError(t, err)

	value, err := codec.Decode(data)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"alliance": "Goonswarm", "members": float64(30000)}, value)
}
