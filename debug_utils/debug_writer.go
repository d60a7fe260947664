package debug_utils

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/logs"
	"github.com/gorustyt/navmeshupdater/common/rw"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/detour"
	"github.com/gorustyt/navmeshupdater/recast"
	"go.uber.org/zap"
)

// Writer dumps recast meshes and navmeshes to files after tile updates when
// enabled in the settings.
type Writer struct {
	settings *config.Settings
	token    atomic.Uint64
	log      *zap.Logger
}

func NewWriter(settings *config.Settings, log *zap.Logger) *Writer {
	log = logs.OrNop(log)
	return &Writer{settings: settings, log: log.Named("debug_dump")}
}

func (d *Writer) Enabled() bool {
	return d.settings.EnableWriteRecastMeshToFile || d.settings.EnableWriteNavMeshToFile
}

// revision returns a file name suffix unique for the process lifetime.
func (d *Writer) revision() string {
	return "." + strconv.FormatUint(d.token.Add(1), 10)
}

// WriteDebugFiles writes the files enabled in the settings. Failures are
// logged and otherwise ignored.
func (d *Writer) WriteDebugFiles(tile common.TilePosition, mesh *recast.RecastMesh, navMesh *detour.NavMeshCacheItem) {
	s := d.settings
	if !d.Enabled() {
		return
	}
	var recastMeshRevision, navMeshRevision string
	if s.EnableRecastMeshFileNameRevision || s.EnableNavMeshFileNameRevision {
		revision := d.revision()
		if s.EnableRecastMeshFileNameRevision {
			recastMeshRevision = revision
		}
		if s.EnableNavMeshFileNameRevision {
			navMeshRevision = revision
		}
	}
	if mesh != nil && s.EnableWriteRecastMeshToFile {
		w := rw.NewBinWriter()
		DuDumpRecastMeshToObj(mesh, w)
		name := fmt.Sprintf("%s%d_%d_recastmesh%s.obj", s.RecastMeshPathPrefix, tile.X, tile.Y, recastMeshRevision)
		d.write(name, w.GetWriteBytes())
	}
	if navMesh != nil && s.EnableWriteNavMeshToFile {
		name := fmt.Sprintf("%sall_tiles_navmesh%s.bin", s.NavMeshPathPrefix, navMeshRevision)
		d.write(name, DuDumpNavMesh(navMesh))
	}
}

func (d *Writer) write(name string, data []byte) {
	if err := os.WriteFile(name, data, 0o644); err != nil {
		d.log.Warn("failed to write debug file", zap.String("file", name), zap.Error(err))
	}
}
