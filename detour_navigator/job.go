package detour_navigator

import (
	"time"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/detour"
)

// Job is a pending rebuild of one tile of one agent navmesh.
type Job struct {
	AgentHalfExtents common.Vec3
	NavMesh          detour.WeakNavMeshCacheItem
	Tile             common.TilePosition
	ChangeType       common.ChangeType
	TryNumber        int
	DistanceToPlayer int
	DistanceToOrigin int
	ProcessTime      time.Time // zero means as soon as possible

	seq uint64
}

func (j *Job) key() tileKey {
	return tileKey{agent: j.AgentHalfExtents, tile: j.Tile}
}

type tileKey struct {
	agent common.Vec3
	tile  common.TilePosition
}
