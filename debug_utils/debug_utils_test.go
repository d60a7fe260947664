package debug_utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/rw"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/detour"
	"github.com/gorustyt/navmeshupdater/recast"
)

func testMesh(t *testing.T) *recast.RecastMesh {
	t.Helper()
	m, err := recast.NewTileCachedRecastMeshManager(256, 0, 1<<20, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)
	hf := recast.NewHeightfield(3, 64, []float32{0, 0, 0, 0, 1, 0, 0, 0, 0})
	if _, err := m.AddObject(1, hf, recast.Translation(128, 0, 128)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddObject(2, recast.NewBox(1, 1, 1), recast.Translation(100, 5, 100)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddWater(recast.WaterCell{}, 256, -1); err != nil {
		t.Fatal(err)
	}
	mesh := m.GetMesh(common.OriginTile)
	if mesh == nil {
		t.Fatal("expected mesh")
	}
	return mesh
}

func TestDumpRecastMeshToObj(t *testing.T) {
	w := rw.NewBinWriter()
	DuDumpRecastMeshToObj(testMesh(t), w)
	out := string(w.GetWriteBytes())
	for _, want := range []string{"o object_1", "o object_2", "o water_0"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in dump", want)
		}
	}
	// 9 heightfield, 8 box and 4 water vertices
	if n := strings.Count(out, "\nv "); n != 21 {
		t.Errorf("got %d vertices, want 21", n)
	}
	// 8 heightfield, 12 box and 2 water triangles
	if n := strings.Count(out, "\nf "); n != 22 {
		t.Errorf("got %d faces, want 22", n)
	}
}

func TestNavMeshDumpRoundTrip(t *testing.T) {
	navMesh := detour.NewNavMeshCacheItem(16, 3)
	for x := int32(0); x < 2; x++ {
		tile := detour.NewTileData(common.TilePosition{X: x}, 2, 1, common.Vec3{float32(x) * 2, 0, 0})
		tile.Areas[0] = detour.AreaGround
		navMesh.ReplaceTile(tile)
	}
	dump, err := DuReadNavMesh(DuDumpNavMesh(navMesh))
	if err != nil {
		t.Fatal(err)
	}
	if dump.Generation != 3 || dump.Revision != 2 || len(dump.Tiles) != 2 {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if dump.Tiles[1].Position() != (common.TilePosition{X: 1}) {
		t.Errorf("tiles should be dumped in order")
	}

	_, err = DuReadNavMesh([]byte{0xff})
	if !errors.Is(err, ErrBadNavMeshDump) {
		t.Errorf("expected ErrBadNavMeshDump, got %v", err)
	}
}

func TestWriterFileNames(t *testing.T) {
	dir := t.TempDir()
	s := config.Default()
	s.EnableWriteRecastMeshToFile = true
	s.EnableWriteNavMeshToFile = true
	s.EnableRecastMeshFileNameRevision = true
	s.RecastMeshPathPrefix = filepath.Join(dir, "recastmesh")
	s.NavMeshPathPrefix = filepath.Join(dir, "navmesh")

	w := NewWriter(s, nil)
	mesh := testMesh(t)
	navMesh := detour.NewNavMeshCacheItem(16, 1)
	w.WriteDebugFiles(common.OriginTile, mesh, navMesh)
	w.WriteDebugFiles(common.OriginTile, mesh, navMesh)

	for _, name := range []string{"recastmesh0_0_recastmesh.1.obj", "recastmesh0_0_recastmesh.2.obj", "navmeshall_tiles_navmesh.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestWriterDisabled(t *testing.T) {
	w := NewWriter(config.Default(), nil)
	if w.Enabled() {
		t.Fatal("dumps are off by default")
	}
	w.WriteDebugFiles(common.OriginTile, nil, nil)
}
