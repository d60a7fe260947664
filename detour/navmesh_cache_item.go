package detour

import (
	"sync"
	"sync/atomic"
	"weak"

	"github.com/gorustyt/navmeshupdater/common"
)

// NavMeshCacheItem is the shared, independently locked navmesh of one agent.
// Writers replace whole tiles under the write lock, so readers always observe
// a complete tile.
type NavMeshCacheItem struct {
	mu              sync.RWMutex
	impl            *NavMesh
	generation      uint64
	navMeshRevision uint64
	tileStatus      map[common.TilePosition]TileStatus

	salt      atomic.Uint32
	destroyed atomic.Bool
}

func NewNavMeshCacheItem(maxTiles int, generation uint64) *NavMeshCacheItem {
	item := &NavMeshCacheItem{
		impl:       NewNavMesh(maxTiles),
		generation: generation,
		tileStatus: make(map[common.TilePosition]TileStatus),
	}
	item.salt.Store(1)
	return item
}

func (c *NavMeshCacheItem) GetGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *NavMeshCacheItem) GetNavMeshRevision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.navMeshRevision
}

func (c *NavMeshCacheItem) GetVersion() common.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return common.Version{Generation: c.generation, Revision: c.navMeshRevision}
}

// Snapshot returns the version and the tiles of the navmesh as seen under a
// single read lock. Tiles are ordered by position.
func (c *NavMeshCacheItem) Snapshot() (common.Version, []*TileData) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tiles := make([]*TileData, 0, c.impl.TileCount())
	c.impl.ForEachTile(func(data *TileData) {
		tiles = append(tiles, data)
	})
	return common.Version{Generation: c.generation, Revision: c.navMeshRevision}, tiles
}

// ReplaceTile writes data at its position. Identical data leaves the navmesh
// and its revision untouched. A destroyed navmesh is never written.
func (c *NavMeshCacheItem) ReplaceTile(data *TileData) UpdateNavMeshStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.Load() {
		return StatusIgnored
	}
	pos := data.Position()
	delete(c.tileStatus, pos)
	if existing := c.impl.GetTile(pos); existing != nil && existing.Equal(data) {
		return StatusUnchanged
	}
	replaced, err := c.impl.AddTile(data)
	if err != nil {
		return StatusFailed
	}
	c.navMeshRevision++
	if replaced {
		return StatusReplaced
	}
	return StatusAdded
}

func (c *NavMeshCacheItem) RemoveTile(tile common.TilePosition) UpdateNavMeshStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.Load() {
		return StatusIgnored
	}
	if !c.impl.RemoveTile(tile) {
		return StatusIgnored
	}
	c.navMeshRevision++
	return StatusRemoved
}

// MarkTile removes the tile and records a terminal status for it.
func (c *NavMeshCacheItem) MarkTile(tile common.TilePosition, status TileStatus) UpdateNavMeshStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.Load() {
		return StatusIgnored
	}
	c.tileStatus[tile] = status
	if !c.impl.RemoveTile(tile) {
		return StatusIgnored
	}
	c.navMeshRevision++
	return StatusRemoved
}

func (c *NavMeshCacheItem) GetTileStatus(tile common.TilePosition) TileStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tileStatus[tile]
}

func (c *NavMeshCacheItem) GetTile(tile common.TilePosition) (*TileData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data := c.impl.GetTile(tile)
	return data, data != nil
}

func (c *NavMeshCacheItem) TileCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.impl.TileCount()
}

func (c *NavMeshCacheItem) Tiles() []common.TilePosition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return common.SortedTiles(c.impl.tiles)
}

// FindHeight returns the walkable surface height below pos.
func (c *NavMeshCacheItem) FindHeight(tileWorldSize float32, pos common.Vec3) (float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data := c.impl.GetTile(common.GetTilePosition(tileWorldSize, pos))
	if data == nil {
		return 0, false
	}
	i := data.CellAt(pos)
	if i < 0 || data.Areas[i] == AreaNull {
		return 0, false
	}
	return data.Heights[i], true
}

// Destroy invalidates every weak reference to the item. Writes started
// before Destroy that have not taken the lock yet are discarded.
func (c *NavMeshCacheItem) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed.CompareAndSwap(false, true) {
		c.salt.Add(1)
	}
}

// Destroyed reports whether Destroy was called.
func (c *NavMeshCacheItem) Destroyed() bool {
	return c.destroyed.Load()
}

// Weak returns a weak reference to the item. The reference of a nil item is
// always expired.
func (c *NavMeshCacheItem) Weak() WeakNavMeshCacheItem {
	if c == nil {
		return WeakNavMeshCacheItem{}
	}
	return WeakNavMeshCacheItem{ptr: weak.Make(c), salt: c.salt.Load()}
}

// WeakNavMeshCacheItem refers to a navmesh without keeping it alive. It
// expires when the item is garbage collected or destroyed.
type WeakNavMeshCacheItem struct {
	ptr  weak.Pointer[NavMeshCacheItem]
	salt uint32
}

// Lock returns the item, or nil when it expired.
func (w WeakNavMeshCacheItem) Lock() *NavMeshCacheItem {
	item := w.ptr.Value()
	if item == nil || item.destroyed.Load() || item.salt.Load() != w.salt {
		return nil
	}
	return item
}
