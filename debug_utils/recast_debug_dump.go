package debug_utils

import (
	"fmt"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/rw"
	"github.com/gorustyt/navmeshupdater/recast"
)

type objWriter struct {
	w      *rw.ReaderWriter
	nverts int
}

func (o *objWriter) vertex(v common.Vec3) {
	o.w.WriteString(fmt.Sprintf("v %f %f %f\n", v.X(), v.Y(), v.Z()))
	o.nverts++
}

// face takes indices relative to the first vertex of the current shape.
func (o *objWriter) face(base int, a, b, c int) {
	o.w.WriteString(fmt.Sprintf("f %d %d %d\n", base+a+1, base+b+1, base+c+1))
}

func (o *objWriter) quad(base int, a, b, c, d int) {
	o.face(base, a, b, c)
	o.face(base, a, c, d)
}

// DuDumpRecastMeshToObj writes the tile geometry as Wavefront OBJ: heightfield
// grids, boxes and water surfaces, each as its own object.
func DuDumpRecastMeshToObj(mesh *recast.RecastMesh, w *rw.ReaderWriter) {
	o := &objWriter{w: w}
	w.WriteString("# Recast Mesh\n")
	w.WriteString(fmt.Sprintf("# tile %d %d generation %d revision %d\n", mesh.Tile.X, mesh.Tile.Y, mesh.Generation, mesh.Revision))

	for _, obj := range mesh.Objects {
		w.WriteString(fmt.Sprintf("\no object_%d\n", obj.Id))
		base := o.nverts
		p := obj.Transform.Position
		switch shape := obj.Shape.(type) {
		case *recast.Heightfield:
			half := float32(shape.Width-1) * shape.Scale / 2
			for row := 0; row < shape.Width; row++ {
				for col := 0; col < shape.Width; col++ {
					o.vertex(common.Vec3{
						p.X() - half + float32(col)*shape.Scale,
						p.Y() + shape.Values[row*shape.Width+col],
						p.Z() - half + float32(row)*shape.Scale,
					})
				}
			}
			for row := 0; row+1 < shape.Width; row++ {
				for col := 0; col+1 < shape.Width; col++ {
					i := row*shape.Width + col
					o.quad(base, i, i+shape.Width, i+shape.Width+1, i+1)
				}
			}
		case *recast.Box:
			he := shape.HalfExtents
			for _, y := range []float32{-he.Y(), he.Y()} {
				for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
					v := common.RotateY(common.Vec3{c[0] * he.X(), 0, c[1] * he.Z()}, obj.Transform.Yaw)
					o.vertex(common.Vec3{v.X() + p.X(), y + p.Y(), v.Z() + p.Z()})
				}
			}
			o.quad(base, 0, 1, 2, 3)
			o.quad(base, 4, 7, 6, 5)
			for i := 0; i < 4; i++ {
				j := (i + 1) % 4
				o.quad(base, i, i+4, j+4, j)
			}
		}
	}

	for i, water := range mesh.Water {
		w.WriteString(fmt.Sprintf("\no water_%d\n", i))
		base := o.nverts
		bmin, bmax := water.Bounds()
		o.vertex(common.Vec3{bmin.X(), bmin.Y(), bmin.Z()})
		o.vertex(common.Vec3{bmin.X(), bmin.Y(), bmax.Z()})
		o.vertex(common.Vec3{bmax.X(), bmin.Y(), bmax.Z()})
		o.vertex(common.Vec3{bmax.X(), bmin.Y(), bmin.Z()})
		o.quad(base, 0, 1, 2, 3)
	}
}
