package detour_navigator

import (
	"errors"

	"github.com/cespare/xxhash/v2"
	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/rw"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/debug_utils"
	"github.com/gorustyt/navmeshupdater/detour"
	"github.com/gorustyt/navmeshupdater/detour_tile_cache"
	"github.com/gorustyt/navmeshupdater/recast"
	"go.uber.org/zap"
)

// settingsHash covers every setting the baked tile depends on.
func settingsHash(s *config.Settings) uint64 {
	w := rw.NewBinWriter()
	w.WriteFloat32(s.CellSize)
	w.WriteFloat32(s.CellHeight)
	w.WriteInt32(int32(s.TileSize))
	w.WriteFloat32(s.MaxClimb)
	w.WriteFloat32(s.MaxSlope)
	w.WriteFloat32(s.SwimHeightScale)
	w.WriteInt32(int32(s.RegionMinSize))
	return xxhash.Sum64(w.GetWriteBytes())
}

// navMeshTileUpdater bakes tiles from the recast mesh manager geometry and
// writes them into agent navmeshes through the tiles cache.
type navMeshTileUpdater struct {
	settings          *config.Settings
	settingsHash      uint64
	recastMeshManager *recast.TileCachedRecastMeshManager
	offMeshManager    *recast.OffMeshConnectionsManager
	tilesCache        *detour_tile_cache.NavMeshTilesCache
	debugWriter       *debug_utils.Writer
	log               *zap.Logger
}

func newNavMeshTileUpdater(settings *config.Settings, recastMeshManager *recast.TileCachedRecastMeshManager,
	offMeshManager *recast.OffMeshConnectionsManager, tilesCache *detour_tile_cache.NavMeshTilesCache, log *zap.Logger) *navMeshTileUpdater {
	return &navMeshTileUpdater{
		settings:          settings,
		settingsHash:      settingsHash(settings),
		recastMeshManager: recastMeshManager,
		offMeshManager:    offMeshManager,
		tilesCache:        tilesCache,
		debugWriter:       debug_utils.NewWriter(settings, log),
		log:               log,
	}
}

func (t *navMeshTileUpdater) UpdateTile(agentHalfExtents common.Vec3, navMesh *detour.NavMeshCacheItem, tile, playerTile common.TilePosition) detour.UpdateNavMeshStatus {
	mesh := t.recastMeshManager.GetMesh(tile)
	offMesh := t.offMeshManager.Get(tile)
	status := updateNavMesh(agentHalfExtents, mesh, tile, playerTile, offMesh, t.settings, t.settingsHash, navMesh, t.tilesCache)
	if mesh != nil && status.IsSuccess() && !navMesh.Destroyed() {
		t.recastMeshManager.ReportNavMeshChange(tile, mesh.Version(), navMesh.GetVersion())
	}
	t.debugWriter.WriteDebugFiles(tile, mesh, navMesh)
	return status
}

func shouldAddTile(tile, playerTile common.TilePosition, maxTilesRadius int) bool {
	return common.ChebyshevDistance(tile, playerTile) <= maxTilesRadius
}

// updateNavMesh rebuilds one tile of the navmesh. Tiles without geometry or
// too far from the player are removed. Baked tiles are looked up in the
// tiles cache before baking.
func updateNavMesh(agentHalfExtents common.Vec3, mesh *recast.RecastMesh, tile, playerTile common.TilePosition,
	offMesh []detour.OffMeshConnection, settings *config.Settings, settingsHash uint64,
	navMesh *detour.NavMeshCacheItem, tilesCache *detour_tile_cache.NavMeshTilesCache) detour.UpdateNavMeshStatus {
	if mesh == nil || mesh.Empty() || !shouldAddTile(tile, playerTile, settings.MaxTilesRadius()) {
		return navMesh.RemoveTile(tile)
	}

	key := detour_tile_cache.TileKey{
		AgentHalfExtents: agentHalfExtents,
		Tile:             tile,
		InputHash:        detour_tile_cache.MakeInputHash(mesh.Hash(), offMesh, settingsHash),
	}
	if tilesCache != nil {
		if cached, ok := tilesCache.Get(key); ok {
			return withCached(navMesh.ReplaceTile(cached))
		}
	}

	data, err := recast.BakeTile(agentHalfExtents, mesh, offMesh, settings)
	if errors.Is(err, recast.ErrNoWalkableGeometry) {
		return navMesh.MarkTile(tile, detour.TileStatusNoWalkable)
	}
	if err != nil {
		return detour.StatusFailed
	}
	if tilesCache != nil {
		tilesCache.Set(key, data)
	}
	return navMesh.ReplaceTile(data)
}

func withCached(status detour.UpdateNavMeshStatus) detour.UpdateNavMeshStatus {
	if status.IsSuccess() {
		return status | detour.StatusCached
	}
	return status
}
