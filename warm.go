package evecache

import "github.com/guarzo/evedmv-cache/internal/warm"

// Warmer pre-populates instances at a bounded rate; see NewWarmer.
type Warmer = warm.Warmer

// Loader produces the value for one key during warming.
type Loader = warm.Loader

// NewWarmer returns a warming adapter bound to this registry, loading at
// most perSec keys per second. The warmer lives until the registry closes.
func (c *Cache) NewWarmer(perSec int) *Warmer {
	return warm.New(c.ctx, c.logger, c, perSec)
}
