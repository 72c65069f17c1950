package evecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/guarzo/evedmv-cache/internal/persist"
)

var ErrPersistDisabled = errors.New("persistence is not enabled")

// ErrNoSnapshot is returned by Restore when no snapshot exists yet.
var ErrNoSnapshot = persist.ErrNoSnapshot

// Codec converts cached values to bytes and back for snapshots.
type Codec = persist.Codec

// JSONCodec is the default codec; see persist.JSONCodec.
type JSONCodec = persist.JSONCodec

// Snapshot dumps the named instance's live entries into a new snapshot
// version and returns its path. Entries already expired are not written.
func (c *Cache) Snapshot(ctx context.Context, name string, codec Codec) (string, error) {
	if !c.cfg.Persist.Enabled() {
		return "", ErrPersistDisabled
	}
	inst, ok := c.instance(name)
	if !ok {
		return "", fmt.Errorf("unknown cache instance %q", name)
	}
	return persist.Dump(ctx, c.cfg.Persist.Dir, name, inst.store, codec, c.clk, c.cfg.Persist.KeepVersions)
}

// Restore loads the newest snapshot of the named instance. Restored
// entries keep their residual TTL; entries that expired while the
// process was down are skipped.
func (c *Cache) Restore(ctx context.Context, name string, codec Codec) (int, error) {
	if !c.cfg.Persist.Enabled() {
		return 0, ErrPersistDisabled
	}
	inst, ok := c.instance(name)
	if !ok {
		return 0, fmt.Errorf("unknown cache instance %q", name)
	}
	return persist.Load(ctx, c.cfg.Persist.Dir, name, inst.store, codec, c.clk)
}
