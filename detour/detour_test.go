package detour

import (
	"errors"
	"testing"

	"github.com/gorustyt/navmeshupdater/common"
)

func makeTile(tile common.TilePosition, height float32) *TileData {
	data := NewTileData(tile, 4, 1, common.Vec3{float32(tile.X) * 4, 0, float32(tile.Y) * 4})
	for i := range data.Areas {
		data.Areas[i] = AreaGround
		data.Heights[i] = height
	}
	return data
}

func TestReplaceTileCountsRevisions(t *testing.T) {
	item := NewNavMeshCacheItem(16, 1)
	if s := item.ReplaceTile(makeTile(common.TilePosition{X: 0, Y: 0}, 1)); s != StatusAdded {
		t.Fatalf("first write: expected added, got %v", s)
	}
	if s := item.ReplaceTile(makeTile(common.TilePosition{X: 0, Y: 0}, 1)); s != StatusUnchanged {
		t.Fatalf("identical write: expected unchanged, got %v", s)
	}
	if s := item.ReplaceTile(makeTile(common.TilePosition{X: 0, Y: 0}, 2)); s != StatusReplaced {
		t.Fatalf("different write: expected replaced, got %v", s)
	}
	if item.GetNavMeshRevision() != 2 {
		t.Errorf("expected revision 2, got %d", item.GetNavMeshRevision())
	}
	if item.GetGeneration() != 1 {
		t.Errorf("generation must not change, got %d", item.GetGeneration())
	}
}

func TestReplaceTileFailsWhenFull(t *testing.T) {
	item := NewNavMeshCacheItem(1, 1)
	item.ReplaceTile(makeTile(common.TilePosition{X: 0, Y: 0}, 1))
	if s := item.ReplaceTile(makeTile(common.TilePosition{X: 1, Y: 0}, 1)); s != StatusFailed || s.IsSuccess() {
		t.Fatalf("expected failed, got %v", s)
	}
	if s := item.ReplaceTile(makeTile(common.TilePosition{X: 0, Y: 0}, 5)); s != StatusReplaced {
		t.Fatalf("replacing in a full navmesh must work, got %v", s)
	}
}

func TestRemoveTile(t *testing.T) {
	item := NewNavMeshCacheItem(16, 1)
	if s := item.RemoveTile(common.TilePosition{X: 3, Y: 3}); s != StatusIgnored {
		t.Fatalf("removing a missing tile: expected ignored, got %v", s)
	}
	item.ReplaceTile(makeTile(common.TilePosition{X: 3, Y: 3}, 1))
	if s := item.RemoveTile(common.TilePosition{X: 3, Y: 3}); s != StatusRemoved {
		t.Fatalf("expected removed, got %v", s)
	}
	if item.TileCount() != 0 || item.GetNavMeshRevision() != 2 {
		t.Errorf("unexpected state: tiles=%d revision=%d", item.TileCount(), item.GetNavMeshRevision())
	}
}

func TestMarkTileRecordsTerminalStatus(t *testing.T) {
	item := NewNavMeshCacheItem(16, 1)
	tile := common.TilePosition{X: 1, Y: 2}
	item.ReplaceTile(makeTile(tile, 1))
	if s := item.MarkTile(tile, TileStatusNoWalkable); s != StatusRemoved {
		t.Fatalf("expected removed, got %v", s)
	}
	if item.GetTileStatus(tile) != TileStatusNoWalkable {
		t.Errorf("terminal status not recorded")
	}
	item.ReplaceTile(makeTile(tile, 1))
	if item.GetTileStatus(tile) != TileStatusNone {
		t.Errorf("a successful write must clear the terminal status")
	}
}

func TestNavMeshSaltChangesOnReplace(t *testing.T) {
	m := NewNavMesh(4)
	tile := common.TilePosition{X: 0, Y: 0}
	if _, err := m.AddTile(makeTile(tile, 1)); err != nil {
		t.Fatal(err)
	}
	first := m.GetTileSalt(tile)
	m.AddTile(makeTile(tile, 2))
	if m.GetTileSalt(tile) == first {
		t.Errorf("salt must change when a tile is replaced")
	}
	m.RemoveTile(tile)
	if m.GetTile(tile) != nil {
		t.Errorf("tile must be gone")
	}
}

func TestNavMeshTileLimit(t *testing.T) {
	m := NewNavMesh(1)
	m.AddTile(makeTile(common.TilePosition{X: 0, Y: 0}, 1))
	if _, err := m.AddTile(makeTile(common.TilePosition{X: 0, Y: 1}, 1)); !errors.Is(err, ErrTileLimitReached) {
		t.Fatalf("expected ErrTileLimitReached, got %v", err)
	}
}

func TestWeakReferenceExpiresOnDestroy(t *testing.T) {
	item := NewNavMeshCacheItem(4, 1)
	weak := item.Weak()
	if weak.Lock() != item {
		t.Fatal("weak reference must resolve while the item is alive")
	}
	item.Destroy()
	if weak.Lock() != nil {
		t.Fatal("weak reference must expire after Destroy")
	}
	var zero WeakNavMeshCacheItem
	if zero.Lock() != nil {
		t.Fatal("zero weak reference must be expired")
	}
}

func TestDestroyedItemIgnoresWrites(t *testing.T) {
	item := NewNavMeshCacheItem(4, 1)
	tile := common.TilePosition{X: 0, Y: 0}
	item.ReplaceTile(makeTile(tile, 1))
	item.Destroy()
	if s := item.ReplaceTile(makeTile(tile, 2)); s != StatusIgnored {
		t.Errorf("replace: expected ignored, got %v", s)
	}
	if s := item.RemoveTile(tile); s != StatusIgnored {
		t.Errorf("remove: expected ignored, got %v", s)
	}
	if s := item.MarkTile(tile, TileStatusNoWalkable); s != StatusIgnored {
		t.Errorf("mark: expected ignored, got %v", s)
	}
	if item.GetNavMeshRevision() != 1 || item.TileCount() != 1 {
		t.Errorf("destroyed item changed: revision=%d tiles=%d", item.GetNavMeshRevision(), item.TileCount())
	}
	if !item.Destroyed() {
		t.Errorf("item must report destroyed")
	}
}

func TestNilItemWeakReferenceIsExpired(t *testing.T) {
	var item *NavMeshCacheItem
	if item.Weak().Lock() != nil {
		t.Fatal("weak reference of a nil item must be expired")
	}
}

func TestSnapshot(t *testing.T) {
	item := NewNavMeshCacheItem(4, 3)
	item.ReplaceTile(makeTile(common.TilePosition{X: 1, Y: 0}, 1))
	item.ReplaceTile(makeTile(common.TilePosition{X: 0, Y: 0}, 1))
	version, tiles := item.Snapshot()
	if version != (common.Version{Generation: 3, Revision: 2}) || version != item.GetVersion() {
		t.Errorf("unexpected version %+v", version)
	}
	if len(tiles) != 2 || tiles[0].Position() != (common.TilePosition{X: 0, Y: 0}) {
		t.Errorf("tiles must be ordered by position")
	}
}

func TestTileDataEncoding(t *testing.T) {
	data := makeTile(common.TilePosition{X: -2, Y: 7}, 3.5)
	data.Areas[5] = AreaWater
	data.OffMeshCons = []OffMeshConnection{{Start: common.Vec3{1, 2, 3}, End: common.Vec3{4, 5, 6}, Radius: 0.5, Bidir: true}}

	var decoded TileData
	if err := decoded.FromBin(data.ToBin()); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(data) {
		t.Fatalf("decoded tile differs: %+v", decoded)
	}
	if err := decoded.FromBin(data.ToBin()[:10]); err == nil {
		t.Fatal("expected an error for truncated data")
	}
}

func TestFindHeight(t *testing.T) {
	item := NewNavMeshCacheItem(4, 1)
	data := makeTile(common.TilePosition{X: 0, Y: 0}, 7)
	data.Areas[0] = AreaNull
	item.ReplaceTile(data)

	if h, ok := item.FindHeight(4, common.Vec3{2.5, 100, 1.5}); !ok || h != 7 {
		t.Errorf("expected height 7, got %v %v", h, ok)
	}
	if _, ok := item.FindHeight(4, common.Vec3{0.5, 0, 0.5}); ok {
		t.Errorf("null area must not report a height")
	}
	if _, ok := item.FindHeight(4, common.Vec3{-3, 0, 0}); ok {
		t.Errorf("missing tile must not report a height")
	}
}

func TestStatusString(t *testing.T) {
	if StatusRestored.String() != "restored" || (StatusReplaced | StatusCached).String() != "removed|added|cached" {
		t.Errorf("unexpected names: %v %v", StatusRestored, StatusReplaced|StatusCached)
	}
}
