package detour_navigator

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/logs"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/detour"
	"github.com/gorustyt/navmeshupdater/detour_tile_cache"
	"github.com/gorustyt/navmeshupdater/recast"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type agentNavMesh struct {
	navMesh      *detour.NavMeshCacheItem
	refs         int
	changedTiles map[common.TilePosition]common.ChangeType
}

// Navigator keeps a navmesh per agent shape up to date with the world
// geometry around the player.
type Navigator struct {
	settings          *config.Settings
	log               *zap.Logger
	recastMeshManager *recast.TileCachedRecastMeshManager
	offMeshManager    *recast.OffMeshConnectionsManager
	tilesCache        *detour_tile_cache.NavMeshTilesCache
	updater           *AsyncNavMeshUpdater

	mu              sync.Mutex
	agents          map[common.Vec3]*agentNavMesh
	playerTile      common.TilePosition
	playerTileKnown bool
	generation      uint64
	closed          bool
}

func NewNavigator(settings *config.Settings, log *zap.Logger) (*Navigator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	log = logs.OrNop(log)
	log = log.Named("navigator")

	recastMeshManager, err := recast.NewTileCachedRecastMeshManager(settings.TileWorldSize(), 0, settings.GeometryCacheSize, log)
	if err != nil {
		return nil, err
	}
	comp, err := detour_tile_cache.NewZstdCompressor()
	if err != nil {
		recastMeshManager.Close()
		return nil, err
	}
	tilesCache := detour_tile_cache.NewNavMeshTilesCache(settings.MaxNavMeshTilesCacheSize, comp, log)
	offMeshManager := recast.NewOffMeshConnectionsManager(settings.TileWorldSize())
	tileUpdater := newNavMeshTileUpdater(settings, recastMeshManager, offMeshManager, tilesCache, log)

	return &Navigator{
		settings:          settings,
		log:               log,
		recastMeshManager: recastMeshManager,
		offMeshManager:    offMeshManager,
		tilesCache:        tilesCache,
		updater:           NewAsyncNavMeshUpdater(settings, tileUpdater, tilesCache, log),
		agents:            make(map[common.Vec3]*agentNavMesh),
	}, nil
}

// AddAgent registers an agent shape. The navmesh is created on the first
// registration and filled on the next Update.
func (n *Navigator) AddAgent(agentHalfExtents common.Vec3) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if agent, ok := n.agents[agentHalfExtents]; ok {
		agent.refs++
		return
	}
	n.generation++
	agent := &agentNavMesh{
		navMesh:      detour.NewNavMeshCacheItem(n.settings.MaxTilesNumber, n.generation),
		refs:         1,
		changedTiles: make(map[common.TilePosition]common.ChangeType),
	}
	for _, tile := range n.recastMeshManager.GetTiles() {
		agent.changedTiles[tile] = common.ChangeAdd
	}
	n.agents[agentHalfExtents] = agent
	n.log.Debug("agent added", zap.String("agent", formatAgent(agentHalfExtents)), zap.Uint64("generation", n.generation))
}

// RemoveAgent drops one registration of the agent shape and destroys its
// navmesh with the last one. Queued jobs for a destroyed navmesh are
// discarded.
func (n *Navigator) RemoveAgent(agentHalfExtents common.Vec3) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	agent, ok := n.agents[agentHalfExtents]
	if !ok {
		return false
	}
	agent.refs--
	if agent.refs > 0 {
		return true
	}
	delete(n.agents, agentHalfExtents)
	agent.navMesh.Destroy()
	return true
}

func (n *Navigator) addChangedTiles(tiles []common.TilePosition, changeType common.ChangeType) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, agent := range n.agents {
		for _, tile := range tiles {
			if existing, ok := agent.changedTiles[tile]; ok {
				agent.changedTiles[tile] = existing.Merge(changeType)
			} else {
				agent.changedTiles[tile] = changeType
			}
		}
	}
}

func (n *Navigator) AddObject(id recast.ObjectId, shape recast.Shape, transform recast.Transform) error {
	tiles, err := n.recastMeshManager.AddObject(id, shape, transform)
	if err != nil {
		return err
	}
	n.addChangedTiles(tiles, common.ChangeAdd)
	return nil
}

func (n *Navigator) UpdateObject(id recast.ObjectId, shape recast.Shape, transform recast.Transform) error {
	tiles, err := n.recastMeshManager.UpdateObject(id, shape, transform)
	if err != nil {
		return err
	}
	n.addChangedTiles(tiles, common.ChangeUpdate)
	return nil
}

func (n *Navigator) RemoveObject(id recast.ObjectId) error {
	tiles, err := n.recastMeshManager.RemoveObject(id)
	if err != nil {
		return err
	}
	n.addChangedTiles(tiles, common.ChangeRemove)
	return nil
}

func (n *Navigator) AddWater(cell recast.WaterCell, cellSize int, level float32) error {
	tiles, err := n.recastMeshManager.AddWater(cell, cellSize, level)
	if err != nil {
		return err
	}
	n.addChangedTiles(tiles, common.ChangeAdd)
	return nil
}

func (n *Navigator) RemoveWater(cell recast.WaterCell) error {
	tiles, err := n.recastMeshManager.RemoveWater(cell)
	if err != nil {
		return err
	}
	n.addChangedTiles(tiles, common.ChangeRemove)
	return nil
}

func (n *Navigator) AddOffMeshConnection(id recast.ObjectId, start, end common.Vec3, radius float32) {
	tiles := n.offMeshManager.Add(id, detour.OffMeshConnection{Start: start, End: end, Radius: radius, Bidir: true})
	n.addChangedTiles(tiles, common.ChangeAdd)
}

func (n *Navigator) RemoveOffMeshConnection(id recast.ObjectId) {
	if tiles := n.offMeshManager.Remove(id); len(tiles) > 0 {
		n.addChangedTiles(tiles, common.ChangeRemove)
	}
}

// Update posts the accumulated changes of every agent. When the player
// moved to another tile, geometry tiles that came into range are added and
// navmesh tiles that left it are removed.
func (n *Navigator) Update(playerPosition common.Vec3) {
	playerTile := common.GetTilePosition(n.settings.TileWorldSize(), playerPosition)
	radius := n.settings.MaxTilesRadius()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	playerTileChanged := !n.playerTileKnown || n.playerTile != playerTile
	n.playerTile, n.playerTileKnown = playerTile, true

	var geometryTiles []common.TilePosition
	if playerTileChanged {
		geometryTiles = n.recastMeshManager.GetTiles()
	}

	for agentHalfExtents, agent := range n.agents {
		tilesToPost := agent.changedTiles
		agent.changedTiles = make(map[common.TilePosition]common.ChangeType)
		if playerTileChanged {
			for _, tile := range geometryTiles {
				if _, ok := tilesToPost[tile]; !ok && shouldAddTile(tile, playerTile, radius) {
					if _, present := agent.navMesh.GetTile(tile); !present {
						tilesToPost[tile] = common.ChangeAdd
					}
				}
			}
			for _, tile := range agent.navMesh.Tiles() {
				if _, ok := tilesToPost[tile]; !ok && !shouldAddTile(tile, playerTile, radius) {
					tilesToPost[tile] = common.ChangeRemove
				}
			}
		}
		n.updater.Post(agentHalfExtents, agent.navMesh, playerTile, tilesToPost)
		if len(tilesToPost) > 0 {
			n.log.Debug("changes posted",
				zap.String("agent", formatAgent(agentHalfExtents)),
				zap.Int("tiles", len(tilesToPost)),
				zap.Stringer("player_tile", playerTile))
		}
	}
}

// Wait blocks until every posted change is applied.
func (n *Navigator) Wait(ctx context.Context) error {
	return n.updater.Wait(ctx)
}

func (n *Navigator) GetNavMesh(agentHalfExtents common.Vec3) (*detour.NavMeshCacheItem, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	agent, ok := n.agents[agentHalfExtents]
	if !ok {
		return nil, false
	}
	return agent.navMesh, true
}

func (n *Navigator) GetNavMeshes() map[common.Vec3]*detour.NavMeshCacheItem {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make(map[common.Vec3]*detour.NavMeshCacheItem, len(n.agents))
	for agentHalfExtents, agent := range n.agents {
		result[agentHalfExtents] = agent.navMesh
	}
	return result
}

// FindHeight returns the walkable surface height at the horizontal position
// in the navmesh of the agent.
func (n *Navigator) FindHeight(agentHalfExtents common.Vec3, position common.Vec3) (float32, bool) {
	navMesh, ok := n.GetNavMesh(agentHalfExtents)
	if !ok {
		return 0, false
	}
	return navMesh.FindHeight(n.settings.TileWorldSize(), position)
}

func (n *Navigator) ReportStats() Stats {
	stats := n.updater.ReportStats()
	stats.Outdated = n.recastMeshManager.OutdatedTiles()
	return stats
}

// Close stops the updater and releases the caches.
func (n *Navigator) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.updater.Stop()
	n.recastMeshManager.Close()
	var err error
	if closeErr := n.tilesCache.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("detour_navigator: close tiles cache: %w", closeErr))
	}
	n.mu.Lock()
	for agentHalfExtents, agent := range n.agents {
		agent.navMesh.Destroy()
		delete(n.agents, agentHalfExtents)
	}
	n.mu.Unlock()
	return err
}
