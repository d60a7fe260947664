package recast

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/rw"
)

type MeshObject struct {
	Id        ObjectId
	Shape     Shape
	Transform Transform
}

// RecastMesh is an immutable snapshot of the geometry intersecting one tile.
type RecastMesh struct {
	Generation uint64
	Revision   uint64
	Tile       common.TilePosition
	Objects    []MeshObject // sorted by id
	Water      []Water

	hash uint64
}

func newRecastMesh(generation, revision uint64, tile common.TilePosition, objects []MeshObject, water []Water) *RecastMesh {
	sort.Slice(objects, func(i, j int) bool { return objects[i].Id < objects[j].Id })
	sort.Slice(water, func(i, j int) bool {
		a, b := water[i].Center, water[j].Center
		if a.X() != b.X() {
			return a.X() < b.X()
		}
		return a.Z() < b.Z()
	})
	m := &RecastMesh{
		Generation: generation,
		Revision:   revision,
		Tile:       tile,
		Objects:    objects,
		Water:      water,
	}
	m.hash = xxhash.Sum64(m.encode())
	return m
}

// encode writes the geometry in canonical order. Revisions are not part of
// it so identical geometry produces identical bytes.
func (m *RecastMesh) encode() []byte {
	w := rw.NewBinWriter()
	w.WriteInt32(m.Tile.X)
	w.WriteInt32(m.Tile.Y)
	w.WriteUInt32(uint32(len(m.Objects)))
	for _, o := range m.Objects {
		o.Shape.encode(w, o.Transform)
	}
	w.WriteUInt32(uint32(len(m.Water)))
	for _, water := range m.Water {
		w.WriteFloat32s(water.Center[:])
		w.WriteFloat32(water.HalfSize)
	}
	return w.GetWriteBytes()
}

func (m *RecastMesh) Version() common.Version {
	return common.Version{Generation: m.Generation, Revision: m.Revision}
}

// Hash identifies the geometry content of the snapshot.
func (m *RecastMesh) Hash() uint64 {
	return m.hash
}

func (m *RecastMesh) Empty() bool {
	return len(m.Objects) == 0 && len(m.Water) == 0
}

// cost approximates the memory held by the snapshot.
func (m *RecastMesh) cost() int64 {
	n := int64(64)
	for _, o := range m.Objects {
		n += 48
		if hf, ok := o.Shape.(*Heightfield); ok {
			n += int64(len(hf.Values)) * 4
		}
	}
	return n + int64(len(m.Water))*16
}
