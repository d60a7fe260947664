package recast

import (
	"slices"
	"sync"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/detour"
)

type offMeshConnectionEntry struct {
	connection detour.OffMeshConnection
	tiles      []common.TilePosition
}

// OffMeshConnectionsManager indexes off-mesh connections by the tiles of
// both endpoints.
type OffMeshConnectionsManager struct {
	mu            sync.Mutex
	tileWorldSize float32
	connections   map[ObjectId]offMeshConnectionEntry
	tiles         map[common.TilePosition]map[ObjectId]struct{}
}

func NewOffMeshConnectionsManager(tileWorldSize float32) *OffMeshConnectionsManager {
	return &OffMeshConnectionsManager{
		tileWorldSize: tileWorldSize,
		connections:   make(map[ObjectId]offMeshConnectionEntry),
		tiles:         make(map[common.TilePosition]map[ObjectId]struct{}),
	}
}

// Add stores the connection and returns the tiles of its endpoints. An
// existing connection with the same id is replaced.
func (m *OffMeshConnectionsManager) Add(id ObjectId, c detour.OffMeshConnection) []common.TilePosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := make(map[common.TilePosition]struct{})
	if old, ok := m.connections[id]; ok {
		m.unlink(id, old.tiles)
		for _, tile := range old.tiles {
			changed[tile] = struct{}{}
		}
	}
	start := common.GetTilePosition(m.tileWorldSize, c.Start)
	end := common.GetTilePosition(m.tileWorldSize, c.End)
	tiles := []common.TilePosition{start}
	if end != start {
		tiles = append(tiles, end)
	}
	m.connections[id] = offMeshConnectionEntry{connection: c, tiles: tiles}
	for _, tile := range tiles {
		ids, ok := m.tiles[tile]
		if !ok {
			ids = make(map[ObjectId]struct{})
			m.tiles[tile] = ids
		}
		ids[id] = struct{}{}
		changed[tile] = struct{}{}
	}
	return common.SortedTiles(changed)
}

// Remove deletes the connection and returns the tiles it was linked to.
func (m *OffMeshConnectionsManager) Remove(id ObjectId) []common.TilePosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.connections[id]
	if !ok {
		return nil
	}
	delete(m.connections, id)
	m.unlink(id, entry.tiles)
	return entry.tiles
}

func (m *OffMeshConnectionsManager) unlink(id ObjectId, tiles []common.TilePosition) {
	for _, tile := range tiles {
		ids := m.tiles[tile]
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.tiles, tile)
		}
	}
}

// Get returns the connections touching the tile ordered by id.
func (m *OffMeshConnectionsManager) Get(tile common.TilePosition) []detour.OffMeshConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.tiles[tile]
	if len(ids) == 0 {
		return nil
	}
	sorted := make([]ObjectId, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	slices.Sort(sorted)
	result := make([]detour.OffMeshConnection, 0, len(sorted))
	for _, id := range sorted {
		result = append(result, m.connections[id].connection)
	}
	return result
}
