package detour

import (
	"bytes"
	"fmt"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/rw"
)

const (
	AreaNull   uint8 = 0
	AreaGround uint8 = 1
	AreaWater  uint8 = 2
)

const (
	tileMagic   = 'N'<<24 | 'A'<<16 | 'V'<<8 | 'T'
	tileVersion = 1
)

type OffMeshConnection struct {
	Start  common.Vec3
	End    common.Vec3
	Radius float32
	Bidir  bool
}

type TileHeader struct {
	X        int32
	Y        int32
	Width    int32 // cells per tile side
	CellSize float32
	Origin   common.Vec3 // min corner; Origin.Y is unused
}

// TileData is the baked traversability grid of a single tile: one surface
// height and one area id per cell, row major by z then x.
type TileData struct {
	Header      TileHeader
	Areas       []uint8
	Heights     []float32
	OffMeshCons []OffMeshConnection
}

func NewTileData(tile common.TilePosition, width int32, cellSize float32, origin common.Vec3) *TileData {
	n := int(width) * int(width)
	return &TileData{
		Header: TileHeader{
			X:        tile.X,
			Y:        tile.Y,
			Width:    width,
			CellSize: cellSize,
			Origin:   origin,
		},
		Areas:   make([]uint8, n),
		Heights: make([]float32, n),
	}
}

func (d *TileData) Position() common.TilePosition {
	return common.TilePosition{X: d.Header.X, Y: d.Header.Y}
}

func (d *TileData) WalkableCells() int {
	n := 0
	for _, a := range d.Areas {
		if a != AreaNull {
			n++
		}
	}
	return n
}

// CellAt returns the cell index containing the world position, or -1.
func (d *TileData) CellAt(pos common.Vec3) int {
	h := d.Header
	cx := int32((pos.X() - h.Origin.X()) / h.CellSize)
	cz := int32((pos.Z() - h.Origin.Z()) / h.CellSize)
	if pos.X() < h.Origin.X() || pos.Z() < h.Origin.Z() || cx >= h.Width || cz >= h.Width {
		return -1
	}
	return int(cz*h.Width + cx)
}

func (d *TileData) ToBin() []byte {
	w := rw.NewBinWriter()
	w.WriteUInt32(tileMagic)
	w.WriteUInt32(tileVersion)
	w.WriteInt32(d.Header.X)
	w.WriteInt32(d.Header.Y)
	w.WriteInt32(d.Header.Width)
	w.WriteFloat32(d.Header.CellSize)
	w.WriteFloat32s(d.Header.Origin[:])
	w.WriteUInt8s(d.Areas)
	w.WriteFloat32s(d.Heights)
	w.WriteUInt32(uint32(len(d.OffMeshCons)))
	for _, c := range d.OffMeshCons {
		w.WriteFloat32s(c.Start[:])
		w.WriteFloat32s(c.End[:])
		w.WriteFloat32(c.Radius)
		if c.Bidir {
			w.WriteUInt8(1)
		} else {
			w.WriteUInt8(0)
		}
	}
	return w.GetWriteBytes()
}

func (d *TileData) FromBin(data []byte) error {
	r := rw.NewBinReader(data)
	if magic := r.ReadUInt32(); magic != tileMagic {
		return fmt.Errorf("detour: wrong tile magic %#x", magic)
	}
	if version := r.ReadUInt32(); version != tileVersion {
		return fmt.Errorf("detour: wrong tile version %d", version)
	}
	d.Header.X = r.ReadInt32()
	d.Header.Y = r.ReadInt32()
	d.Header.Width = r.ReadInt32()
	d.Header.CellSize = r.ReadFloat32()
	r.ReadFloat32s(d.Header.Origin[:])
	if r.Err() != nil {
		return fmt.Errorf("detour: read tile header: %w", r.Err())
	}
	if d.Header.Width < 0 || int64(d.Header.Width)*int64(d.Header.Width)*5 > int64(len(data)) {
		return fmt.Errorf("detour: bad tile width %d", d.Header.Width)
	}
	n := int(d.Header.Width) * int(d.Header.Width)
	d.Areas = make([]uint8, n)
	r.ReadUInt8s(d.Areas)
	d.Heights = make([]float32, n)
	r.ReadFloat32s(d.Heights)
	count := r.ReadUInt32()
	if r.Err() != nil {
		return fmt.Errorf("detour: read tile cells: %w", r.Err())
	}
	d.OffMeshCons = nil
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		var c OffMeshConnection
		r.ReadFloat32s(c.Start[:])
		r.ReadFloat32s(c.End[:])
		c.Radius = r.ReadFloat32()
		c.Bidir = r.ReadUInt8() != 0
		d.OffMeshCons = append(d.OffMeshCons, c)
	}
	if r.Err() != nil {
		return fmt.Errorf("detour: read off-mesh connections: %w", r.Err())
	}
	return nil
}

// Equal reports whether both tiles encode to the same bytes.
func (d *TileData) Equal(o *TileData) bool {
	if d == nil || o == nil {
		return d == o
	}
	return bytes.Equal(d.ToBin(), o.ToBin())
}
