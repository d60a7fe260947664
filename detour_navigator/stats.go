package detour_navigator

import (
	"github.com/gorustyt/navmeshupdater/common/message"
	"github.com/gorustyt/navmeshupdater/detour_tile_cache"
	"google.golang.org/protobuf/types/known/structpb"
)

type CacheStats = detour_tile_cache.CacheStats

type Stats struct {
	Jobs       int // queued in the shared and worker queues
	Processing int // tiles being rebuilt
	// Outdated counts tiles whose geometry changed after their last build.
	Outdated int
	Cache    CacheStats
}

func (s Stats) ToProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"navmesh_update_jobs":      s.Jobs,
		"navmesh_processing_tiles": s.Processing,
		"navmesh_outdated_tiles":   s.Outdated,
		"navmesh_cache_items":      s.Cache.Items,
		"navmesh_cache_size":       s.Cache.Size,
		"navmesh_cache_hits":       s.Cache.Hits,
		"navmesh_cache_misses":     s.Cache.Misses,
	})
}

// Marshal encodes the stats as a protobuf Struct.
func (s Stats) Marshal() ([]byte, error) {
	msg, err := s.ToProto()
	if err != nil {
		return nil, err
	}
	return message.Encode(msg)
}
