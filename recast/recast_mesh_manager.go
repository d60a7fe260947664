package recast

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/logs"
	"go.uber.org/zap"
)

var (
	ErrObjectExists   = errors.New("recast: object already exists")
	ErrObjectNotFound = errors.New("recast: object not found")
	ErrWaterExists    = errors.New("recast: water already exists")
	ErrWaterNotFound  = errors.New("recast: water not found")
)

type object struct {
	shape     Shape
	transform Transform
	tiles     []common.TilePosition
}

type WaterCell struct {
	X, Y int32
}

type water struct {
	water Water
	tiles []common.TilePosition
}

// builtVersion links a navmesh version to the tile geometry it was built
// from.
type builtVersion struct {
	recastMesh common.Version
	navMesh    common.Version
}

// TileCachedRecastMeshManager stores the world geometry and tracks which tiles
// each shape touches. Per tile snapshots are cached by tile revision.
type TileCachedRecastMeshManager struct {
	mu            sync.Mutex
	tileWorldSize float32
	generation    uint64
	revision      uint64
	objects       map[ObjectId]*object
	water         map[WaterCell]*water
	tileObjects   map[common.TilePosition]map[ObjectId]struct{}
	tileWater     map[common.TilePosition]map[WaterCell]struct{}
	tileRevisions map[common.TilePosition]uint64
	builtVersions map[common.TilePosition]builtVersion

	meshes *ristretto.Cache[string, *RecastMesh]
	log    *zap.Logger
}

func NewTileCachedRecastMeshManager(tileWorldSize float32, generation uint64, cacheSize int64, log *zap.Logger) (*TileCachedRecastMeshManager, error) {
	log = logs.OrNop(log)
	if cacheSize <= 0 {
		cacheSize = 1
	}
	meshes, err := ristretto.NewCache(&ristretto.Config[string, *RecastMesh]{
		NumCounters: 100000,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("recast: create mesh cache: %w", err)
	}
	return &TileCachedRecastMeshManager{
		tileWorldSize: tileWorldSize,
		generation:    generation,
		objects:       make(map[ObjectId]*object),
		water:         make(map[WaterCell]*water),
		tileObjects:   make(map[common.TilePosition]map[ObjectId]struct{}),
		tileWater:     make(map[common.TilePosition]map[WaterCell]struct{}),
		tileRevisions: make(map[common.TilePosition]uint64),
		builtVersions: make(map[common.TilePosition]builtVersion),
		meshes:        meshes,
		log:           log.Named("recast_mesh_manager"),
	}, nil
}

func (m *TileCachedRecastMeshManager) tilesOf(bmin, bmax common.Vec3) []common.TilePosition {
	var tiles []common.TilePosition
	common.GetTilesInBounds(m.tileWorldSize, bmin, bmax, func(tile common.TilePosition) {
		tiles = append(tiles, tile)
	})
	return tiles
}

func (m *TileCachedRecastMeshManager) touch(changed map[common.TilePosition]struct{}, tiles []common.TilePosition) {
	for _, tile := range tiles {
		if _, ok := changed[tile]; ok {
			continue
		}
		changed[tile] = struct{}{}
		m.revision++
		m.tileRevisions[tile] = m.revision
	}
}

func sortedChanged(changed map[common.TilePosition]struct{}) []common.TilePosition {
	return common.SortedTiles(changed)
}

func (m *TileCachedRecastMeshManager) linkObject(id ObjectId, tiles []common.TilePosition) {
	for _, tile := range tiles {
		ids, ok := m.tileObjects[tile]
		if !ok {
			ids = make(map[ObjectId]struct{})
			m.tileObjects[tile] = ids
		}
		ids[id] = struct{}{}
	}
}

func (m *TileCachedRecastMeshManager) unlinkObject(id ObjectId, tiles []common.TilePosition) {
	for _, tile := range tiles {
		ids := m.tileObjects[tile]
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.tileObjects, tile)
			m.dropBuiltVersion(tile)
		}
	}
}

func (m *TileCachedRecastMeshManager) dropBuiltVersion(tile common.TilePosition) {
	if !m.hasTile(tile) {
		delete(m.builtVersions, tile)
	}
}

// AddObject adds a shape and returns the tiles it touches.
func (m *TileCachedRecastMeshManager) AddObject(id ObjectId, shape Shape, transform Transform) ([]common.TilePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrObjectExists, id)
	}
	tiles := m.tilesOf(shape.Bounds(transform))
	m.objects[id] = &object{shape: shape, transform: transform, tiles: tiles}
	m.linkObject(id, tiles)
	changed := make(map[common.TilePosition]struct{}, len(tiles))
	m.touch(changed, tiles)
	return sortedChanged(changed), nil
}

// UpdateObject moves a shape. It returns the tiles touched before and after
// the move, or nothing when the transform did not change.
func (m *TileCachedRecastMeshManager) UpdateObject(id ObjectId, shape Shape, transform Transform) ([]common.TilePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrObjectNotFound, id)
	}
	if obj.shape == shape && obj.transform == transform {
		return nil, nil
	}
	tiles := m.tilesOf(shape.Bounds(transform))
	changed := make(map[common.TilePosition]struct{}, len(tiles))
	m.touch(changed, obj.tiles)
	m.touch(changed, tiles)
	m.unlinkObject(id, obj.tiles)
	m.linkObject(id, tiles)
	obj.shape, obj.transform, obj.tiles = shape, transform, tiles
	return sortedChanged(changed), nil
}

func (m *TileCachedRecastMeshManager) RemoveObject(id ObjectId) ([]common.TilePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrObjectNotFound, id)
	}
	delete(m.objects, id)
	m.unlinkObject(id, obj.tiles)
	changed := make(map[common.TilePosition]struct{}, len(obj.tiles))
	m.touch(changed, obj.tiles)
	return sortedChanged(changed), nil
}

// AddWater adds a square water surface of cellSize centered on
// cell * cellSize.
func (m *TileCachedRecastMeshManager) AddWater(cell WaterCell, cellSize int, level float32) ([]common.TilePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.water[cell]; ok {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrWaterExists, cell.X, cell.Y)
	}
	size := float32(cellSize)
	w := Water{
		Center:   common.Vec3{float32(cell.X) * size, level, float32(cell.Y) * size},
		HalfSize: size / 2,
	}
	tiles := m.tilesOf(w.Bounds())
	m.water[cell] = &water{water: w, tiles: tiles}
	for _, tile := range tiles {
		cells, ok := m.tileWater[tile]
		if !ok {
			cells = make(map[WaterCell]struct{})
			m.tileWater[tile] = cells
		}
		cells[cell] = struct{}{}
	}
	changed := make(map[common.TilePosition]struct{}, len(tiles))
	m.touch(changed, tiles)
	return sortedChanged(changed), nil
}

func (m *TileCachedRecastMeshManager) RemoveWater(cell WaterCell) ([]common.TilePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.water[cell]
	if !ok {
		return nil, fmt.Errorf("%w: (%d, %d)", ErrWaterNotFound, cell.X, cell.Y)
	}
	delete(m.water, cell)
	for _, tile := range w.tiles {
		cells := m.tileWater[tile]
		delete(cells, cell)
		if len(cells) == 0 {
			delete(m.tileWater, tile)
			m.dropBuiltVersion(tile)
		}
	}
	changed := make(map[common.TilePosition]struct{}, len(w.tiles))
	m.touch(changed, w.tiles)
	return sortedChanged(changed), nil
}

func (m *TileCachedRecastMeshManager) hasTile(tile common.TilePosition) bool {
	return len(m.tileObjects[tile]) > 0 || len(m.tileWater[tile]) > 0
}

// ReportNavMeshChange records that navMeshVersion was built from the tile
// geometry at recastMeshVersion. Reports about older geometry than the
// recorded one are ignored.
func (m *TileCachedRecastMeshManager) ReportNavMeshChange(tile common.TilePosition, recastMeshVersion, navMeshVersion common.Version) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasTile(tile) {
		return
	}
	if built, ok := m.builtVersions[tile]; ok && recastMeshVersion.Less(built.recastMesh) {
		return
	}
	m.builtVersions[tile] = builtVersion{recastMesh: recastMeshVersion, navMesh: navMeshVersion}
}

// OutdatedTiles returns the number of tiles whose geometry changed after the
// last reported navmesh build.
func (m *TileCachedRecastMeshManager) OutdatedTiles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	count := func(tile common.TilePosition) {
		current := common.Version{Generation: m.generation, Revision: m.tileRevisions[tile]}
		if built, ok := m.builtVersions[tile]; !ok || built.recastMesh.Less(current) {
			n++
		}
	}
	for tile := range m.tileObjects {
		count(tile)
	}
	for tile := range m.tileWater {
		if _, ok := m.tileObjects[tile]; !ok {
			count(tile)
		}
	}
	return n
}

// GetTiles returns every tile with geometry in ascending order.
func (m *TileCachedRecastMeshManager) GetTiles() []common.TilePosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make(map[common.TilePosition]struct{}, len(m.tileObjects)+len(m.tileWater))
	for tile := range m.tileObjects {
		all[tile] = struct{}{}
	}
	for tile := range m.tileWater {
		all[tile] = struct{}{}
	}
	return common.SortedTiles(all)
}

func meshKey(tile common.TilePosition, revision uint64) string {
	return fmt.Sprintf("%d:%d:%d", tile.X, tile.Y, revision)
}

// GetMesh returns the geometry snapshot of the tile, or nil when the tile has
// no geometry.
func (m *TileCachedRecastMeshManager) GetMesh(tile common.TilePosition) *RecastMesh {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, cells := m.tileObjects[tile], m.tileWater[tile]
	if len(ids) == 0 && len(cells) == 0 {
		return nil
	}
	revision := m.tileRevisions[tile]
	key := meshKey(tile, revision)
	if mesh, ok := m.meshes.Get(key); ok {
		return mesh
	}
	objects := make([]MeshObject, 0, len(ids))
	for id := range ids {
		obj := m.objects[id]
		objects = append(objects, MeshObject{Id: id, Shape: obj.shape, Transform: obj.transform})
	}
	waters := make([]Water, 0, len(cells))
	for cell := range cells {
		waters = append(waters, m.water[cell].water)
	}
	mesh := newRecastMesh(m.generation, revision, tile, objects, waters)
	if !m.meshes.Set(key, mesh, mesh.cost()) {
		m.log.Debug("mesh snapshot not cached", zap.Stringer("tile", tile))
	}
	return mesh
}

func (m *TileCachedRecastMeshManager) Close() {
	m.meshes.Close()
}
