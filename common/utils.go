package common

import "slices"

// SortedTiles returns the keys of m in tile order.
func SortedTiles[V any](m map[TilePosition]V) []TilePosition {
	res := make([]TilePosition, 0, len(m))
	for tile := range m {
		res = append(res, tile)
	}
	slices.SortFunc(res, func(a, b TilePosition) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	return res
}
