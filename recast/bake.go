package recast

import (
	"errors"
	"math"
	"sort"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/detour"
)

var ErrNoWalkableGeometry = errors.New("recast: tile has no walkable geometry")

type span struct {
	bottom, top float32
	normalY     float32
}

// columnSpans collects the solid spans crossing the vertical line at (x, z).
func columnSpans(mesh *RecastMesh, x, z float32, spans []span) []span {
	for _, o := range mesh.Objects {
		switch shape := o.Shape.(type) {
		case *Heightfield:
			h, gx, gz, ok := shape.Sample(o.Transform, x, z)
			if !ok {
				continue
			}
			n := common.Vec3{-gx, 1, -gz}.Normalize()
			spans = append(spans, span{bottom: float32(math.Inf(-1)), top: h, normalY: n.Y()})
		case *Box:
			if !shape.Contains(o.Transform, x, z) {
				continue
			}
			y := o.Transform.Position.Y()
			spans = append(spans, span{bottom: y - shape.HalfExtents.Y(), top: y + shape.HalfExtents.Y(), normalY: 1})
		}
	}
	return spans
}

// walkableTop returns the highest span top below ceiling that is flat enough
// and leaves walkableHeight of free space above it.
func walkableTop(spans []span, walkableHeight, walkableThr, ceiling float32) (float32, bool) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].top > spans[j].top })
	for i, s := range spans {
		if s.top >= ceiling || s.normalY <= walkableThr {
			continue
		}
		free := true
		for j, o := range spans {
			if j != i && o.bottom < s.top+walkableHeight && o.top > s.top {
				free = false
				break
			}
		}
		if free {
			return s.top, true
		}
	}
	return 0, false
}

func waterLevel(mesh *RecastMesh, x, z float32) (float32, bool) {
	level, found := float32(math.Inf(-1)), false
	for _, w := range mesh.Water {
		if w.Contains(x, z) && w.Center.Y() > level {
			level, found = w.Center.Y(), true
		}
	}
	return level, found
}

type tileBaker struct {
	mesh        *RecastMesh
	data        *detour.TileData
	agentHeight float32
	swimDepth   float32
	walkableThr float32
	spans       []span
}

// bakeCell picks the surface of cell i among the spans below ceiling.
func (b *tileBaker) bakeCell(i int, ceiling float32) {
	h := b.data.Header
	width := int(h.Width)
	x := h.Origin.X() + (float32(i%width)+0.5)*h.CellSize
	z := h.Origin.Z() + (float32(i/width)+0.5)*h.CellSize

	b.spans = columnSpans(b.mesh, x, z, b.spans[:0])
	top, walkable := walkableTop(b.spans, b.agentHeight, b.walkableThr, ceiling)
	level, wet := waterLevel(b.mesh, x, z)
	switch {
	case wet && level < ceiling && (!walkable || level-top > b.swimDepth):
		b.data.Areas[i] = detour.AreaWater
		b.data.Heights[i] = level
	case walkable:
		b.data.Areas[i] = detour.AreaGround
		b.data.Heights[i] = top
	default:
		b.data.Areas[i] = detour.AreaNull
		b.data.Heights[i] = 0
	}
}

// BakeTile builds the traversability grid of a tile for an agent. Every cell
// keeps the highest surface with enough clearance whose slope does not exceed
// MaxSlope. Surfaces under deep water become water cells at the water level.
// Cells of small isolated regions fall back to the surface below them.
func BakeTile(agentHalfExtents common.Vec3, mesh *RecastMesh, offMesh []detour.OffMeshConnection, s *config.Settings) (*detour.TileData, error) {
	if mesh == nil {
		return nil, ErrNoWalkableGeometry
	}
	tileWorldSize := s.TileWorldSize()
	origin := common.Vec3{float32(mesh.Tile.X) * tileWorldSize, 0, float32(mesh.Tile.Y) * tileWorldSize}
	data := detour.NewTileData(mesh.Tile, int32(s.TileSize), s.CellSize, origin)

	agentHeight := 2 * agentHalfExtents.Y()
	b := &tileBaker{
		mesh:        mesh,
		data:        data,
		agentHeight: agentHeight,
		swimDepth:   s.SwimHeightScale * agentHeight,
		walkableThr: float32(math.Cos(float64(s.MaxSlope) / 180 * math.Pi)),
	}
	noCeiling := float32(math.Inf(1))
	for i := range data.Areas {
		b.bakeCell(i, noCeiling)
	}

	minRegionArea := s.RegionMinSize * s.RegionMinSize
	removed := filterSmallRegions(data, s.MaxClimb, minRegionArea)
	for _, i := range removed {
		b.bakeCell(i, data.Heights[i])
	}
	if len(removed) > 0 {
		for _, i := range filterSmallRegions(data, s.MaxClimb, minRegionArea) {
			data.Heights[i] = 0
		}
	}
	if data.WalkableCells() == 0 {
		return nil, ErrNoWalkableGeometry
	}

	for _, c := range offMesh {
		start := common.GetTilePosition(tileWorldSize, c.Start)
		end := common.GetTilePosition(tileWorldSize, c.End)
		if start == mesh.Tile || (c.Bidir && end == mesh.Tile) {
			data.OffMeshCons = append(data.OffMeshCons, c)
		}
	}
	return data, nil
}

// filterSmallRegions removes connected walkable areas smaller than
// minRegionArea cells unless they reach the tile border and may continue in
// the neighbour tile. Neighbour cells are connected when their heights differ
// by at most maxClimb. Removed cells keep their height and are returned.
func filterSmallRegions(data *detour.TileData, maxClimb float32, minRegionArea int) []int {
	width := int(data.Header.Width)
	visited := make([]bool, len(data.Areas))
	var stack, region, removed []int
	for start := range data.Areas {
		if visited[start] || data.Areas[start] == detour.AreaNull {
			continue
		}
		visited[start] = true
		stack = append(stack[:0], start)
		region = region[:0]
		connectsToBorder := false
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			region = append(region, i)
			x, z := i%width, i/width
			if x == 0 || z == 0 || x == width-1 || z == width-1 {
				connectsToBorder = true
			}
			for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, nz := x+d[0], z+d[1]
				if nx < 0 || nz < 0 || nx >= width || nz >= width {
					continue
				}
				j := nz*width + nx
				if visited[j] || data.Areas[j] == detour.AreaNull || common.Abs(data.Heights[j]-data.Heights[i]) > maxClimb {
					continue
				}
				visited[j] = true
				stack = append(stack, j)
			}
		}
		if len(region) < minRegionArea && !connectsToBorder {
			for _, i := range region {
				data.Areas[i] = detour.AreaNull
			}
			removed = append(removed, region...)
		}
	}
	return removed
}
