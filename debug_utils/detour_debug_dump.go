package debug_utils

import (
	"errors"
	"fmt"

	"github.com/gorustyt/navmeshupdater/detour"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	navMeshGenerationField protowire.Number = 1
	navMeshRevisionField   protowire.Number = 2
	navMeshTileField       protowire.Number = 3
)

var ErrBadNavMeshDump = errors.New("debug_utils: malformed navmesh dump")

// NavMeshDump is the decoded content of a navmesh dump.
type NavMeshDump struct {
	Generation uint64
	Revision   uint64
	Tiles      []*detour.TileData
}

// DuDumpNavMesh encodes every tile of the navmesh as protobuf wire records.
// The dump reflects a single state of the navmesh.
func DuDumpNavMesh(navMesh *detour.NavMeshCacheItem) []byte {
	version, tiles := navMesh.Snapshot()
	var b []byte
	b = protowire.AppendTag(b, navMeshGenerationField, protowire.VarintType)
	b = protowire.AppendVarint(b, version.Generation)
	b = protowire.AppendTag(b, navMeshRevisionField, protowire.VarintType)
	b = protowire.AppendVarint(b, version.Revision)
	for _, tile := range tiles {
		b = protowire.AppendTag(b, navMeshTileField, protowire.BytesType)
		b = protowire.AppendBytes(b, tile.ToBin())
	}
	return b
}

func DuReadNavMesh(b []byte) (*NavMeshDump, error) {
	dump := &NavMeshDump{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrBadNavMeshDump, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == navMeshGenerationField && typ == protowire.VarintType:
			dump.Generation, n = protowire.ConsumeVarint(b)
		case num == navMeshRevisionField && typ == protowire.VarintType:
			dump.Revision, n = protowire.ConsumeVarint(b)
		case num == navMeshTileField && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				tile := &detour.TileData{}
				if err := tile.FromBin(raw); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrBadNavMeshDump, err)
				}
				dump.Tiles = append(dump.Tiles, tile)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrBadNavMeshDump, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return dump, nil
}
