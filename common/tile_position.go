package common

import (
	"fmt"
	"math"
)

// TilePosition identifies a tile of the world grid.
type TilePosition struct {
	X int32
	Y int32
}

// OriginTile hosts fixed bootstrap content and is used as the secondary
// prioritization anchor.
var OriginTile = TilePosition{}

func (t TilePosition) String() string {
	return fmt.Sprintf("(%d, %d)", t.X, t.Y)
}

// Less orders tiles by X then Y.
func (t TilePosition) Less(o TilePosition) bool {
	if t.X != o.X {
		return t.X < o.X
	}
	return t.Y < o.Y
}

func ManhattanDistance(lhs, rhs TilePosition) int {
	return int(Abs(lhs.X-rhs.X)) + int(Abs(lhs.Y-rhs.Y))
}

// ChebyshevDistance is the number of tile rings between two tiles.
func ChebyshevDistance(lhs, rhs TilePosition) int {
	return int(max(Abs(lhs.X-rhs.X), Abs(lhs.Y-rhs.Y)))
}

// TileWorldSize is the edge length of a tile in world units.
func TileWorldSize(tileSize int, cellSize float32) float32 {
	return float32(tileSize) * cellSize
}

// GetTilePosition returns the tile containing the horizontal (x, z) part of pos.
func GetTilePosition(tileWorldSize float32, pos Vec3) TilePosition {
	return TilePosition{
		X: int32(math.Floor(float64(pos.X() / tileWorldSize))),
		Y: int32(math.Floor(float64(pos.Z() / tileWorldSize))),
	}
}

// GetTileBounds returns the horizontal bounds of a tile as (minX, minZ), (maxX, maxZ).
func GetTileBounds(tileWorldSize float32, tile TilePosition) (bmin, bmax Vec2) {
	bmin = Vec2{float32(tile.X) * tileWorldSize, float32(tile.Y) * tileWorldSize}
	bmax = Vec2{bmin[0] + tileWorldSize, bmin[1] + tileWorldSize}
	return bmin, bmax
}

// GetTilesInBounds calls fn for every tile overlapped by the horizontal
// projection of [bmin, bmax]. A max edge lying exactly on a tile border does
// not touch the next tile.
func GetTilesInBounds(tileWorldSize float32, bmin, bmax Vec3, fn func(TilePosition)) {
	minX := int32(math.Floor(float64(bmin.X() / tileWorldSize)))
	minY := int32(math.Floor(float64(bmin.Z() / tileWorldSize)))
	maxX := int32(math.Ceil(float64(bmax.X()/tileWorldSize))) - 1
	maxY := int32(math.Ceil(float64(bmax.Z()/tileWorldSize))) - 1
	maxX = max(maxX, minX)
	maxY = max(maxY, minY)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			fn(TilePosition{X: x, Y: y})
		}
	}
}
