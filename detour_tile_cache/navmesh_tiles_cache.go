package detour_tile_cache

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/logs"
	"github.com/gorustyt/navmeshupdater/common/rw"
	"github.com/gorustyt/navmeshupdater/detour"
	"go.uber.org/zap"
)

// TileKey addresses a baked tile by everything the bake depends on.
type TileKey struct {
	AgentHalfExtents common.Vec3
	Tile             common.TilePosition
	InputHash        uint64 // geometry, off-mesh connections and settings
}

// MakeInputHash hashes the bake inputs of a tile.
func MakeInputHash(geometryHash uint64, offMeshConnections []detour.OffMeshConnection, settingsHash uint64) uint64 {
	w := rw.NewBinWriter()
	w.WriteUInt64(geometryHash)
	w.WriteUInt64(settingsHash)
	w.WriteUInt32(uint32(len(offMeshConnections)))
	for _, c := range offMeshConnections {
		w.WriteFloat32s(c.Start[:])
		w.WriteFloat32s(c.End[:])
		w.WriteFloat32(c.Radius)
		if c.Bidir {
			w.WriteUInt8(1)
		} else {
			w.WriteUInt8(0)
		}
	}
	return xxhash.Sum64(w.GetWriteBytes())
}

type cacheEntry struct {
	key        TileKey
	compressed []byte
}

type CacheStats struct {
	Items  int
	Size   int64
	Hits   uint64
	Misses uint64
}

// NavMeshTilesCache keeps recently baked tiles, compressed, up to maxSize
// bytes and evicts the least recently used ones.
type NavMeshTilesCache struct {
	mu      sync.Mutex
	maxSize int64
	size    int64
	lru     *list.List // front is most recently used
	entries map[TileKey]*list.Element
	hits    uint64
	misses  uint64

	comp TileCacheCompressor
	log  *zap.Logger
}

func NewNavMeshTilesCache(maxSize int64, comp TileCacheCompressor, log *zap.Logger) *NavMeshTilesCache {
	log = logs.OrNop(log)
	return &NavMeshTilesCache{
		maxSize: maxSize,
		lru:     list.New(),
		entries: make(map[TileKey]*list.Element),
		comp:    comp,
		log:     log.Named("tiles_cache"),
	}
}

func (c *NavMeshTilesCache) Get(key TileKey) (*detour.TileData, bool) {
	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(el)
	compressed := el.Value.(*cacheEntry).compressed
	c.mu.Unlock()

	raw, err := c.comp.Decompress(compressed)
	if err != nil {
		c.log.Warn("drop unreadable cache entry", zap.Stringer("tile", key.Tile), zap.Error(err))
		c.remove(key)
		return nil, false
	}
	data := &detour.TileData{}
	if err := data.FromBin(raw); err != nil {
		c.log.Warn("drop undecodable cache entry", zap.Stringer("tile", key.Tile), zap.Error(err))
		c.remove(key)
		return nil, false
	}
	return data, true
}

// Set stores data under key. Entries larger than the whole cache are not kept.
func (c *NavMeshTilesCache) Set(key TileKey, data *detour.TileData) {
	compressed := c.comp.Compress(data.ToBin())
	cost := int64(len(compressed))
	if cost > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.size -= int64(len(el.Value.(*cacheEntry).compressed))
		el.Value = &cacheEntry{key: key, compressed: compressed}
		c.size += cost
		c.lru.MoveToFront(el)
	} else {
		c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, compressed: compressed})
		c.size += cost
	}
	for c.size > c.maxSize {
		c.removeElement(c.lru.Back())
	}
}

func (c *NavMeshTilesCache) remove(key TileKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

func (c *NavMeshTilesCache) removeElement(el *list.Element) {
	entry := c.lru.Remove(el).(*cacheEntry)
	delete(c.entries, entry.key)
	c.size -= int64(len(entry.compressed))
}

func (c *NavMeshTilesCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Items: c.lru.Len(), Size: c.size, Hits: c.hits, Misses: c.misses}
}

func (c *NavMeshTilesCache) Close() error {
	return c.comp.Close()
}
