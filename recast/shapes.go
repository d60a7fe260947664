package recast

import (
	"math"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/rw"
)

type ObjectId uint64

// Transform places a shape in the world: a translation and a rotation around
// the vertical axis.
type Transform struct {
	Position common.Vec3
	Yaw      float32
}

func Translation(x, y, z float32) Transform {
	return Transform{Position: common.Vec3{x, y, z}}
}

// Shape is collision geometry contributing to tiles. Shapes must not be
// modified once added to a mesh manager.
type Shape interface {
	Bounds(t Transform) (bmin, bmax common.Vec3)
	encode(w *rw.ReaderWriter, t Transform)
}

// Heightfield is a square grid of heights centered on its transform
// position. Values are row major: rows along z, columns along x. The yaw of
// the transform is ignored.
type Heightfield struct {
	Width  int
	Scale  float32 // horizontal distance between samples
	Values []float32
}

func NewHeightfield(width int, scale float32, values []float32) *Heightfield {
	return &Heightfield{Width: width, Scale: scale, Values: values}
}

func (h *Heightfield) halfSize() float32 {
	return float32(h.Width-1) * h.Scale / 2
}

func (h *Heightfield) Bounds(t Transform) (bmin, bmax common.Vec3) {
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range h.Values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	half := h.halfSize()
	p := t.Position
	return common.Vec3{p.X() - half, p.Y() + lo, p.Z() - half}, common.Vec3{p.X() + half, p.Y() + hi, p.Z() + half}
}

// Sample returns the bilinear height and its horizontal gradient at (x, z).
func (h *Heightfield) Sample(t Transform, x, z float32) (height, gx, gz float32, ok bool) {
	if h.Width < 2 {
		return 0, 0, 0, false
	}
	last := float32(h.Width - 1)
	u := (x-t.Position.X())/h.Scale + last/2
	v := (z-t.Position.Z())/h.Scale + last/2
	if u < 0 || v < 0 || u > last || v > last {
		return 0, 0, 0, false
	}
	col := min(int(u), h.Width-2)
	row := min(int(v), h.Width-2)
	fu := u - float32(col)
	fv := v - float32(row)

	v00 := h.Values[row*h.Width+col]
	v10 := h.Values[row*h.Width+col+1]
	v01 := h.Values[(row+1)*h.Width+col]
	v11 := h.Values[(row+1)*h.Width+col+1]

	top := common.Lerp(v00, v10, fu)
	bottom := common.Lerp(v01, v11, fu)
	height = common.Lerp(top, bottom, fv) + t.Position.Y()
	gx = ((v10-v00)*(1-fv) + (v11-v01)*fv) / h.Scale
	gz = ((v01-v00)*(1-fu) + (v11-v10)*fu) / h.Scale
	return height, gx, gz, true
}

func (h *Heightfield) encode(w *rw.ReaderWriter, t Transform) {
	w.WriteUInt8(1)
	w.WriteFloat32s(t.Position[:])
	w.WriteInt32(int32(h.Width))
	w.WriteFloat32(h.Scale)
	w.WriteFloat32s(h.Values)
}

// Box is an oriented box given by its half extents.
type Box struct {
	HalfExtents common.Vec3
}

func NewBox(hx, hy, hz float32) *Box {
	return &Box{HalfExtents: common.Vec3{hx, hy, hz}}
}

func (b *Box) Bounds(t Transform) (bmin, bmax common.Vec3) {
	bmin = common.Vec3{float32(math.Inf(1)), 0, float32(math.Inf(1))}
	bmax = common.Vec3{float32(math.Inf(-1)), 0, float32(math.Inf(-1))}
	he := b.HalfExtents
	for _, c := range [4]common.Vec3{{he.X(), 0, he.Z()}, {-he.X(), 0, he.Z()}, {he.X(), 0, -he.Z()}, {-he.X(), 0, -he.Z()}} {
		r := common.RotateY(c, t.Yaw)
		bmin[0], bmin[2] = min(bmin[0], r.X()), min(bmin[2], r.Z())
		bmax[0], bmax[2] = max(bmax[0], r.X()), max(bmax[2], r.Z())
	}
	bmin[1], bmax[1] = -he.Y(), he.Y()
	return bmin.Add(t.Position), bmax.Add(t.Position)
}

// Contains reports whether the vertical line through (x, z) crosses the box.
func (b *Box) Contains(t Transform, x, z float32) bool {
	local := common.RotateY(common.Vec3{x - t.Position.X(), 0, z - t.Position.Z()}, -t.Yaw)
	return common.Abs(local.X()) <= b.HalfExtents.X() && common.Abs(local.Z()) <= b.HalfExtents.Z()
}

func (b *Box) encode(w *rw.ReaderWriter, t Transform) {
	w.WriteUInt8(2)
	w.WriteFloat32s(t.Position[:])
	w.WriteFloat32(t.Yaw)
	w.WriteFloat32s(b.HalfExtents[:])
}

// Water is a horizontal square water surface.
type Water struct {
	Center   common.Vec3 // Center.Y is the water level
	HalfSize float32
}

func (w Water) Bounds() (bmin, bmax common.Vec3) {
	c := w.Center
	return common.Vec3{c.X() - w.HalfSize, c.Y(), c.Z() - w.HalfSize}, common.Vec3{c.X() + w.HalfSize, c.Y(), c.Z() + w.HalfSize}
}

func (w Water) Contains(x, z float32) bool {
	return common.Abs(x-w.Center.X()) <= w.HalfSize && common.Abs(z-w.Center.Z()) <= w.HalfSize
}
