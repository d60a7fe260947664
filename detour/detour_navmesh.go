package detour

import (
	"github.com/gorustyt/navmeshupdater/common"
)

type navMeshTile struct {
	data *TileData
	salt uint32
}

// NavMesh stores baked tiles by position. It is not safe for concurrent use;
// NavMeshCacheItem guards it.
type NavMesh struct {
	maxTiles int
	tiles    map[common.TilePosition]*navMeshTile
	salts    map[common.TilePosition]uint32
}

func NewNavMesh(maxTiles int) *NavMesh {
	return &NavMesh{
		maxTiles: maxTiles,
		tiles:    make(map[common.TilePosition]*navMeshTile),
		salts:    make(map[common.TilePosition]uint32),
	}
}

func (m *NavMesh) GetMaxTiles() int { return m.maxTiles }
func (m *NavMesh) TileCount() int   { return len(m.tiles) }

func (m *NavMesh) GetTile(tile common.TilePosition) *TileData {
	if t, ok := m.tiles[tile]; ok {
		return t.data
	}
	return nil
}

// GetTileSalt returns the salt of the tile slot; it changes every time the tile
// at that position is replaced or removed.
func (m *NavMesh) GetTileSalt(tile common.TilePosition) uint32 {
	return m.salts[tile]
}

// AddTile stores data at its position, replacing any previous tile there.
func (m *NavMesh) AddTile(data *TileData) (replaced bool, err error) {
	pos := data.Position()
	if _, ok := m.tiles[pos]; ok {
		replaced = true
	} else if len(m.tiles) >= m.maxTiles {
		return false, ErrTileLimitReached
	}
	salt := m.nextSalt(pos)
	m.tiles[pos] = &navMeshTile{data: data, salt: salt}
	return replaced, nil
}

func (m *NavMesh) RemoveTile(tile common.TilePosition) bool {
	if _, ok := m.tiles[tile]; !ok {
		return false
	}
	delete(m.tiles, tile)
	m.nextSalt(tile)
	return true
}

func (m *NavMesh) nextSalt(tile common.TilePosition) uint32 {
	// Update salt, salt should never be zero.
	salt := m.salts[tile] + 1
	if salt == 0 {
		salt++
	}
	m.salts[tile] = salt
	return salt
}

func (m *NavMesh) ForEachTile(fn func(*TileData)) {
	for _, tile := range common.SortedTiles(m.tiles) {
		fn(m.tiles[tile].data)
	}
}
