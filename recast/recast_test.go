package recast

import (
	"errors"
	"math"
	"testing"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/detour"
)

var agentHalfExtents = common.Vec3{29, 66, 29}

func assertTrue(t *testing.T, value bool, msg string) {
	t.Helper()
	if !value {
		t.Error(msg)
	}
}

func flatGround(level float32) *Heightfield {
	return NewHeightfield(3, 512, []float32{
		level, level, level,
		level, level, level,
		level, level, level,
	})
}

func newTestManager(t *testing.T) *TileCachedRecastMeshManager {
	t.Helper()
	m, err := NewTileCachedRecastMeshManager(config.Default().TileWorldSize(), 0, 1<<20, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestHeightfieldSample(t *testing.T) {
	hf := NewHeightfield(2, 10, []float32{0, 10, 0, 10})
	tr := Translation(0, 5, 0)
	h, gx, gz, ok := hf.Sample(tr, 0, 0)
	assertTrue(t, ok, "center should be inside")
	assertTrue(t, h == 10, "center height")
	assertTrue(t, gx == 1 && gz == 0, "gradient along x")
	_, _, _, ok = hf.Sample(tr, 6, 0)
	assertTrue(t, !ok, "outside the heightfield")

	bmin, bmax := hf.Bounds(tr)
	assertTrue(t, bmin == common.Vec3{-5, 5, -5}, "bounds min")
	assertTrue(t, bmax == common.Vec3{5, 15, 5}, "bounds max")
}

func TestBoxRotation(t *testing.T) {
	box := NewBox(10, 1, 2)
	tr := Transform{Position: common.Vec3{100, 0, 100}, Yaw: math.Pi / 2}
	assertTrue(t, box.Contains(tr, 100, 109), "rotated box should extend along z")
	assertTrue(t, !box.Contains(tr, 109, 100), "rotated box should be narrow along x")
	bmin, bmax := box.Bounds(tr)
	assertTrue(t, common.Abs(bmin.Z()-90) < 1e-3 && common.Abs(bmax.Z()-110) < 1e-3, "rotated bounds along z")
	assertTrue(t, common.Abs(bmin.X()-98) < 1e-3 && common.Abs(bmax.X()-102) < 1e-3, "rotated bounds along x")
}

func TestManagerReportsChangedTiles(t *testing.T) {
	m := newTestManager(t)
	box := NewBox(1, 1, 1)
	tiles, err := m.AddObject(1, box, Translation(10, 0, 10))
	if err != nil {
		t.Fatal(err)
	}
	assertTrue(t, len(tiles) == 1 && tiles[0] == common.OriginTile, "box should touch the origin tile")

	_, err = m.AddObject(1, box, Translation(10, 0, 10))
	assertTrue(t, errors.Is(err, ErrObjectExists), "duplicate id should be rejected")

	tiles, err = m.UpdateObject(1, box, Translation(10, 0, 10))
	assertTrue(t, err == nil && len(tiles) == 0, "same transform should change nothing")

	tiles, err = m.UpdateObject(1, box, Translation(300, 0, 10))
	if err != nil {
		t.Fatal(err)
	}
	assertTrue(t, len(tiles) == 2, "move should touch old and new tiles")
	assertTrue(t, !m.hasTile(common.OriginTile), "origin tile should be empty after move")
	assertTrue(t, m.GetMesh(common.OriginTile) == nil, "empty tile has no mesh")

	tiles, err = m.RemoveObject(1)
	assertTrue(t, err == nil && len(tiles) == 1 && tiles[0] == common.TilePosition{X: 1, Y: 0}, "remove should report the last tile")
	_, err = m.RemoveObject(1)
	assertTrue(t, errors.Is(err, ErrObjectNotFound), "second remove should fail")
}

func TestMeshRevisionAndHash(t *testing.T) {
	m := newTestManager(t)
	box := NewBox(1, 1, 1)
	if _, err := m.AddObject(1, box, Translation(10, 0, 10)); err != nil {
		t.Fatal(err)
	}
	first := m.GetMesh(common.OriginTile)
	if first == nil {
		t.Fatal("expected mesh")
	}
	if _, err := m.UpdateObject(1, box, Translation(11, 0, 10)); err != nil {
		t.Fatal(err)
	}
	second := m.GetMesh(common.OriginTile)
	assertTrue(t, second.Revision > first.Revision, "revision should grow")
	assertTrue(t, second.Hash() != first.Hash(), "hash should follow geometry")

	if _, err := m.UpdateObject(1, box, Translation(10, 0, 10)); err != nil {
		t.Fatal(err)
	}
	third := m.GetMesh(common.OriginTile)
	assertTrue(t, third.Revision > second.Revision, "revision should grow again")
	assertTrue(t, third.Hash() == first.Hash(), "identical geometry should hash equal")
}

func TestManagerWater(t *testing.T) {
	m := newTestManager(t)
	tiles, err := m.AddWater(WaterCell{}, 512, -25)
	if err != nil {
		t.Fatal(err)
	}
	assertTrue(t, len(tiles) == 4, "water should cover four tiles")
	mesh := m.GetMesh(common.OriginTile)
	assertTrue(t, mesh != nil && len(mesh.Water) == 1, "tile should carry the water")
	_, err = m.AddWater(WaterCell{}, 512, 0)
	assertTrue(t, errors.Is(err, ErrWaterExists), "duplicate water should be rejected")
	tiles, err = m.RemoveWater(WaterCell{})
	assertTrue(t, err == nil && len(tiles) == 4, "remove should report covered tiles")
	assertTrue(t, len(m.GetTiles()) == 0, "no geometry left")
}

func TestOffMeshConnections(t *testing.T) {
	m := NewOffMeshConnectionsManager(256)
	c := detour.OffMeshConnection{Start: common.Vec3{10, 0, 10}, End: common.Vec3{300, 0, 10}, Radius: 1}
	tiles := m.Add(7, c)
	assertTrue(t, len(tiles) == 2, "both endpoint tiles should change")
	assertTrue(t, len(m.Get(common.OriginTile)) == 1, "start tile should see the connection")
	assertTrue(t, len(m.Get(common.TilePosition{X: 1})) == 1, "end tile should see the connection")
	tiles = m.Remove(7)
	assertTrue(t, len(tiles) == 2, "remove should report both tiles")
	assertTrue(t, len(m.Get(common.OriginTile)) == 0, "connection should be gone")
	assertTrue(t, m.Remove(7) == nil, "second remove is a no-op")
}

func meshOf(t *testing.T, m *TileCachedRecastMeshManager, tile common.TilePosition) *RecastMesh {
	t.Helper()
	mesh := m.GetMesh(tile)
	if mesh == nil {
		t.Fatalf("no mesh for tile %v", tile)
	}
	return mesh
}

func TestBakeFlatGround(t *testing.T) {
	s := config.Default()
	m := newTestManager(t)
	if _, err := m.AddObject(1, flatGround(0), Translation(128, 0, 128)); err != nil {
		t.Fatal(err)
	}
	data, err := BakeTile(agentHalfExtents, meshOf(t, m, common.OriginTile), nil, s)
	if err != nil {
		t.Fatal(err)
	}
	assertTrue(t, data.WalkableCells() == s.TileSize*s.TileSize, "every cell should be walkable")
	assertTrue(t, data.Position() == common.OriginTile, "tile position")
}

func TestBakeStandsOnBox(t *testing.T) {
	s := config.Default()
	m := newTestManager(t)
	if _, err := m.AddObject(1, flatGround(0), Translation(128, 0, 128)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddObject(2, NewBox(3, 0.5, 3), Translation(130, 1, 130)); err != nil {
		t.Fatal(err)
	}
	data, err := BakeTile(agentHalfExtents, meshOf(t, m, common.OriginTile), nil, s)
	if err != nil {
		t.Fatal(err)
	}
	i := data.CellAt(common.Vec3{130, 0, 130})
	assertTrue(t, i >= 0 && data.Heights[i] == 1.5, "cell under the box should stand on its top")
	i = data.CellAt(common.Vec3{10, 0, 10})
	assertTrue(t, data.Heights[i] == 0, "other cells stay on the ground")
}

func TestBakeRejectsSteepSlope(t *testing.T) {
	s := config.Default()
	m := newTestManager(t)
	steep := NewHeightfield(2, 256, []float32{0, 0, 1000, 1000})
	if _, err := m.AddObject(1, steep, Translation(128, 0, 128)); err != nil {
		t.Fatal(err)
	}
	_, err := BakeTile(agentHalfExtents, meshOf(t, m, common.OriginTile), nil, s)
	assertTrue(t, errors.Is(err, ErrNoWalkableGeometry), "steep slope should not be walkable")
}

func TestBakeWater(t *testing.T) {
	s := config.Default()
	m := newTestManager(t)
	if _, err := m.AddObject(1, flatGround(0), Translation(128, 0, 128)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddWater(WaterCell{}, 1024, 300); err != nil {
		t.Fatal(err)
	}
	data, err := BakeTile(agentHalfExtents, meshOf(t, m, common.OriginTile), nil, s)
	if err != nil {
		t.Fatal(err)
	}
	assertTrue(t, data.Areas[0] == detour.AreaWater && data.Heights[0] == 300, "deep water should be swimmable")

	if _, err := m.RemoveWater(WaterCell{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddWater(WaterCell{}, 1024, 10); err != nil {
		t.Fatal(err)
	}
	data, err = BakeTile(agentHalfExtents, meshOf(t, m, common.OriginTile), nil, s)
	if err != nil {
		t.Fatal(err)
	}
	assertTrue(t, data.Areas[0] == detour.AreaGround, "shallow water keeps ground")
}

func TestBakeOffMeshConnections(t *testing.T) {
	s := config.Default()
	m := newTestManager(t)
	if _, err := m.AddObject(1, flatGround(0), Translation(128, 0, 128)); err != nil {
		t.Fatal(err)
	}
	cons := []detour.OffMeshConnection{
		{Start: common.Vec3{10, 0, 10}, End: common.Vec3{300, 0, 10}},
		{Start: common.Vec3{300, 0, 10}, End: common.Vec3{10, 0, 10}},
		{Start: common.Vec3{300, 0, 10}, End: common.Vec3{20, 0, 20}, Bidir: true},
	}
	data, err := BakeTile(agentHalfExtents, meshOf(t, m, common.OriginTile), cons, s)
	if err != nil {
		t.Fatal(err)
	}
	assertTrue(t, len(data.OffMeshCons) == 2, "connections starting here and bidirectional ones ending here")
}

func TestBakeNilMesh(t *testing.T) {
	_, err := BakeTile(agentHalfExtents, nil, nil, config.Default())
	assertTrue(t, errors.Is(err, ErrNoWalkableGeometry), "nil mesh has nothing to walk on")
}

func TestBakeFiltersSmallRegions(t *testing.T) {
	s := config.Default()
	m := newTestManager(t)
	if _, err := m.AddObject(1, flatGround(0), Translation(128, 0, 128)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddObject(2, NewBox(6, 6, 6), Translation(128, 400, 128)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddObject(3, NewBox(6, 6, 6), Translation(2, 400, 128)); err != nil {
		t.Fatal(err)
	}
	data, err := BakeTile(agentHalfExtents, meshOf(t, m, common.OriginTile), nil, s)
	if err != nil {
		t.Fatal(err)
	}
	i := data.CellAt(common.Vec3{126, 0, 126})
	assertTrue(t, data.Areas[i] == detour.AreaGround && data.Heights[i] == 0, "small floating region should be dropped")
	i = data.CellAt(common.Vec3{2, 0, 126})
	assertTrue(t, data.Heights[i] == 406, "region on the tile border should be kept")
}

func TestManagerTracksBuiltVersions(t *testing.T) {
	m := newTestManager(t)
	box := NewBox(1, 1, 1)
	if _, err := m.AddObject(1, box, Translation(10, 0, 10)); err != nil {
		t.Fatal(err)
	}
	assertTrue(t, m.OutdatedTiles() == 1, "new geometry is not built yet")

	first := m.GetMesh(common.OriginTile)
	m.ReportNavMeshChange(common.OriginTile, first.Version(), common.Version{Generation: 1, Revision: 1})
	assertTrue(t, m.OutdatedTiles() == 0, "reported tile is up to date")

	if _, err := m.UpdateObject(1, box, Translation(20, 0, 20)); err != nil {
		t.Fatal(err)
	}
	assertTrue(t, m.OutdatedTiles() == 1, "moved geometry is outdated")
	second := m.GetMesh(common.OriginTile)
	m.ReportNavMeshChange(common.OriginTile, second.Version(), common.Version{Generation: 1, Revision: 2})
	m.ReportNavMeshChange(common.OriginTile, first.Version(), common.Version{Generation: 1, Revision: 3})
	assertTrue(t, m.OutdatedTiles() == 0, "report about older geometry is ignored")

	if _, err := m.RemoveObject(1); err != nil {
		t.Fatal(err)
	}
	m.ReportNavMeshChange(common.OriginTile, second.Version(), common.Version{Generation: 1, Revision: 4})
	assertTrue(t, m.OutdatedTiles() == 0 && len(m.builtVersions) == 0, "empty tiles are not tracked")
}
