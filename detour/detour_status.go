package detour

import (
	"errors"
	"strings"
)

var (
	ErrTileLimitReached = errors.New("detour: tile limit reached")
	ErrTileMismatch     = errors.New("detour: tile data does not match its position")
)

// UpdateNavMeshStatus describes what happened to a tile after a rebuild.
type UpdateNavMeshStatus uint32

const (
	StatusIgnored   UpdateNavMeshStatus = 0
	StatusRemoved   UpdateNavMeshStatus = 1 << 0
	StatusAdded     UpdateNavMeshStatus = 1 << 1
	StatusReplaced                      = StatusRemoved | StatusAdded
	StatusFailed    UpdateNavMeshStatus = 1 << 2
	StatusLost                          = StatusRemoved | StatusFailed // old tile removed, new one not added
	StatusCached    UpdateNavMeshStatus = 1 << 3                       // tile data came from the tiles cache
	StatusUnchanged UpdateNavMeshStatus = 1 << 4
	StatusRestored                      = StatusAdded | StatusCached
)

// IsSuccess reports whether the job producing this status needs no retry.
func (s UpdateNavMeshStatus) IsSuccess() bool {
	return s&StatusFailed == 0
}

func (s UpdateNavMeshStatus) Has(flag UpdateNavMeshStatus) bool {
	return s&flag == flag
}

func (s UpdateNavMeshStatus) String() string {
	switch s {
	case StatusIgnored:
		return "ignored"
	case StatusRemoved:
		return "removed"
	case StatusAdded:
		return "added"
	case StatusReplaced:
		return "replaced"
	case StatusFailed:
		return "failed"
	case StatusLost:
		return "lost"
	case StatusCached:
		return "cached"
	case StatusUnchanged:
		return "unchanged"
	case StatusRestored:
		return "restored"
	}
	var parts []string
	for _, f := range []struct {
		flag UpdateNavMeshStatus
		name string
	}{
		{StatusRemoved, "removed"},
		{StatusAdded, "added"},
		{StatusFailed, "failed"},
		{StatusCached, "cached"},
		{StatusUnchanged, "unchanged"},
	} {
		if s.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// TileStatus is a terminal outcome recorded on the navmesh for a tile whose
// rebuild must not be retried.
type TileStatus uint8

const (
	TileStatusNone TileStatus = iota
	TileStatusNoWalkable
)
