package detour_navigator

import (
	"github.com/gorustyt/navmeshupdater/common"
)

// TileLockTable records which worker is processing a tile of an agent
// navmesh. Not safe for concurrent use.
type TileLockTable struct {
	owners map[tileKey]int
}

func NewTileLockTable() *TileLockTable {
	return &TileLockTable{owners: make(map[tileKey]int)}
}

// Lock claims the tile for worker and returns the owner, which is worker
// itself unless another worker holds the tile.
func (t *TileLockTable) Lock(agent common.Vec3, tile common.TilePosition, worker int) int {
	key := tileKey{agent: agent, tile: tile}
	if owner, ok := t.owners[key]; ok {
		return owner
	}
	t.owners[key] = worker
	return worker
}

// Unlock releases the tile if worker owns it.
func (t *TileLockTable) Unlock(agent common.Vec3, tile common.TilePosition, worker int) bool {
	key := tileKey{agent: agent, tile: tile}
	if owner, ok := t.owners[key]; !ok || owner != worker {
		return false
	}
	delete(t.owners, key)
	return true
}

func (t *TileLockTable) owner(agent common.Vec3, tile common.TilePosition) (int, bool) {
	owner, ok := t.owners[tileKey{agent: agent, tile: tile}]
	return owner, ok
}

func (t *TileLockTable) Len() int {
	return len(t.owners)
}
