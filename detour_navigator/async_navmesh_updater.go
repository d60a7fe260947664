package detour_navigator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorustyt/navmeshupdater/common"
	"github.com/gorustyt/navmeshupdater/common/logs"
	"github.com/gorustyt/navmeshupdater/config"
	"github.com/gorustyt/navmeshupdater/detour"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TileUpdater rebuilds a single tile of an agent navmesh.
type TileUpdater interface {
	UpdateTile(agentHalfExtents common.Vec3, navMesh *detour.NavMeshCacheItem, tile, playerTile common.TilePosition) detour.UpdateNavMeshStatus
}

type TileUpdaterFunc func(agentHalfExtents common.Vec3, navMesh *detour.NavMeshCacheItem, tile, playerTile common.TilePosition) detour.UpdateNavMeshStatus

func (f TileUpdaterFunc) UpdateTile(agentHalfExtents common.Vec3, navMesh *detour.NavMeshCacheItem, tile, playerTile common.TilePosition) detour.UpdateNavMeshStatus {
	return f(agentHalfExtents, navMesh, tile, playerTile)
}

// AsyncNavMeshUpdater rebuilds changed navmesh tiles on background workers.
// A tile of an agent navmesh is processed by at most one worker at a time.
// Tiles closer to the player go first and repeated updates of one tile are
// spaced by MinUpdateInterval.
type AsyncNavMeshUpdater struct {
	settings *config.Settings
	updater  TileUpdater
	cache    CacheStatsReporter
	log      *zap.Logger

	mu           sync.Mutex
	jobs         *JobQueue
	threadQueues []*JobQueue
	processing   *TileLockTable
	lastUpdates  map[tileKey]time.Time
	hasJob       chan struct{} // closed and replaced to wake workers
	done         chan struct{} // closed and replaced when work may be finished
	stopped      bool

	stateMu    sync.Mutex
	playerTile common.TilePosition
	firstStart time.Time

	stop     chan struct{}
	stopOnce sync.Once
	group    errgroup.Group
}

// CacheStatsReporter exposes the occupancy of the baked tiles cache.
type CacheStatsReporter interface {
	Stats() CacheStats
}

// NewAsyncNavMeshUpdater starts AsyncNavMeshUpdaterThreads workers. cache
// may be nil.
func NewAsyncNavMeshUpdater(settings *config.Settings, updater TileUpdater, cache CacheStatsReporter, log *zap.Logger) *AsyncNavMeshUpdater {
	u := newAsyncNavMeshUpdater(settings, updater, cache, log)
	for i := range u.threadQueues {
		u.group.Go(func() error {
			u.process(i)
			return nil
		})
	}
	return u
}

func newAsyncNavMeshUpdater(settings *config.Settings, updater TileUpdater, cache CacheStatsReporter, log *zap.Logger) *AsyncNavMeshUpdater {
	log = logs.OrNop(log)
	threads := max(settings.AsyncNavMeshUpdaterThreads, 1)
	u := &AsyncNavMeshUpdater{
		settings:     settings,
		updater:      updater,
		cache:        cache,
		log:          log.Named("async_navmesh_updater"),
		jobs:         NewJobQueue(),
		threadQueues: make([]*JobQueue, threads),
		processing:   NewTileLockTable(),
		lastUpdates:  make(map[tileKey]time.Time),
		hasJob:       make(chan struct{}),
		done:         make(chan struct{}),
		stop:         make(chan struct{}),
	}
	for i := range u.threadQueues {
		u.threadQueues[i] = NewJobQueue()
	}
	return u
}

func (u *AsyncNavMeshUpdater) notifyHasJob() {
	close(u.hasJob)
	u.hasJob = make(chan struct{})
}

func (u *AsyncNavMeshUpdater) notifyDone() {
	close(u.done)
	u.done = make(chan struct{})
}

// Post queues rebuilds of the changed tiles. Tiles already queued for the
// agent are skipped. The player tile is recorded even when nothing changed
// or there is no navmesh to update.
func (u *AsyncNavMeshUpdater) Post(agentHalfExtents common.Vec3, navMesh *detour.NavMeshCacheItem, playerTile common.TilePosition, changedTiles map[common.TilePosition]common.ChangeType) {
	u.stateMu.Lock()
	u.playerTile = playerTile
	u.stateMu.Unlock()

	if len(changedTiles) == 0 || navMesh == nil {
		return
	}

	weak := navMesh.Weak()
	now := time.Now()

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.stopped {
		return
	}

	for _, tile := range common.SortedTiles(changedTiles) {
		changeType := changedTiles[tile]
		job := &Job{
			AgentHalfExtents: agentHalfExtents,
			NavMesh:          weak,
			Tile:             tile,
			ChangeType:       changeType,
			DistanceToPlayer: common.ManhattanDistance(tile, playerTile),
			DistanceToOrigin: common.ManhattanDistance(tile, common.OriginTile),
		}
		if changeType == common.ChangeUpdate {
			if last, ok := u.lastUpdates[job.key()]; ok {
				job.ProcessTime = last.Add(u.settings.MinUpdateInterval)
			}
		}
		u.jobs.Push(job, now)
	}

	u.log.Debug("posted navigator jobs", zap.Int("jobs", u.jobs.Len()))

	if u.jobs.Len() > 0 {
		u.notifyHasJob()
	}
}

// Wait blocks until every queued job is processed and no tile is being
// rebuilt. It returns ctx.Err() when ctx ends first and nil once the updater
// is stopped.
func (u *AsyncNavMeshUpdater) Wait(ctx context.Context) error {
	for {
		u.mu.Lock()
		if u.stopped || u.isIdleLocked() {
			u.mu.Unlock()
			return nil
		}
		done := u.done
		u.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (u *AsyncNavMeshUpdater) ReportStats() Stats {
	var stats Stats
	u.mu.Lock()
	stats.Jobs = u.jobs.Len() + u.totalThreadJobsLocked()
	stats.Processing = u.processing.Len()
	u.mu.Unlock()
	if u.cache != nil {
		stats.Cache = u.cache.Stats()
	}
	return stats
}

// Stop drops queued jobs and waits for the workers to exit. A tile being
// rebuilt is finished first.
func (u *AsyncNavMeshUpdater) Stop() {
	u.stopOnce.Do(func() {
		u.mu.Lock()
		u.stopped = true
		u.jobs.Clear()
		for _, q := range u.threadQueues {
			q.Clear()
		}
		close(u.stop)
		u.notifyHasJob()
		u.notifyDone()
		u.mu.Unlock()
		_ = u.group.Wait()
		u.log.Debug("stopped")
	})
}

func (u *AsyncNavMeshUpdater) isIdleLocked() bool {
	return u.jobs.Len() == 0 && u.totalThreadJobsLocked() == 0 && u.processing.Len() == 0
}

func (u *AsyncNavMeshUpdater) totalThreadJobsLocked() int {
	n := 0
	for _, q := range u.threadQueues {
		n += q.Len()
	}
	return n
}

func (u *AsyncNavMeshUpdater) isStopped() bool {
	select {
	case <-u.stop:
		return true
	default:
		return false
	}
}

func (u *AsyncNavMeshUpdater) process(worker int) {
	log := u.log.With(zap.Int("worker", worker))
	log.Debug("start processing navigator jobs")
	for !u.isStopped() {
		u.processNext(worker, log)
	}
	log.Debug("stop processing navigator jobs")
}

func (u *AsyncNavMeshUpdater) processNext(worker int, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("navigator job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	job := u.getNextJob(worker)
	if job == nil {
		u.cleanupLastUpdates()
		return
	}

	processed := false
	defer func() { u.finishJob(job, worker, processed, log) }()
	processed = u.processJob(job, log)
}

func (u *AsyncNavMeshUpdater) processJob(job *Job, log *zap.Logger) bool {
	start := time.Now()
	firstStart := u.setFirstStart(start)

	navMesh := job.NavMesh.Lock()
	if navMesh == nil {
		log.Debug("navmesh is gone, dropping job", zap.Stringer("tile", job.Tile))
		return true
	}

	u.stateMu.Lock()
	playerTile := u.playerTile
	u.stateMu.Unlock()

	status := u.updater.UpdateTile(job.AgentHalfExtents, navMesh, job.Tile, playerTile)
	if navMesh.Destroyed() {
		log.Debug("navmesh destroyed during update, dropping job", zap.Stringer("tile", job.Tile))
		return true
	}

	finish := time.Now()
	log.Debug("cache updated",
		zap.String("agent", formatAgent(job.AgentHalfExtents)),
		zap.Stringer("tile", job.Tile),
		zap.Stringer("status", status),
		zap.Uint64("generation", navMesh.GetGeneration()),
		zap.Uint64("revision", navMesh.GetNavMeshRevision()),
		zap.Duration("time", finish.Sub(start)),
		zap.Duration("total_time", finish.Sub(firstStart)),
	)
	return status.IsSuccess()
}

func (u *AsyncNavMeshUpdater) setFirstStart(value time.Time) time.Time {
	u.stateMu.Lock()
	defer u.stateMu.Unlock()
	if u.firstStart.IsZero() {
		u.firstStart = value
	}
	return u.firstStart
}

func (u *AsyncNavMeshUpdater) resetFirstStart() {
	u.stateMu.Lock()
	u.firstStart = time.Time{}
	u.stateMu.Unlock()
}

// getNextJob returns a job claimed by worker, or nil when nothing became
// eligible within JobPollInterval. Jobs for tiles owned by another worker are
// handed over to its queue.
func (u *AsyncNavMeshUpdater) getNextJob(worker int) *Job {
	deadline := time.Now().Add(u.settings.JobPollInterval)

	u.mu.Lock()
	defer u.mu.Unlock()
	threadQueue := u.threadQueues[worker]

	for {
		if u.stopped {
			return nil
		}
		now := time.Now()

		job := threadQueue.Pop(now)
		if job == nil {
			job = u.jobs.Pop(now)
			if job != nil && job.ChangeType == common.ChangeUpdate {
				u.lastUpdates[job.key()] = now
			}
		}

		if job == nil {
			if !now.Before(deadline) {
				u.resetFirstStart()
				if u.isIdleLocked() {
					u.notifyDone()
				}
				return nil
			}
			wakeAt := deadline
			if next, ok := u.jobs.NextProcessTime(); ok && next.Before(wakeAt) {
				wakeAt = next
			}
			if !u.waitLocked(wakeAt.Sub(now)) {
				return nil
			}
			continue
		}

		owner := u.processing.Lock(job.AgentHalfExtents, job.Tile, worker)
		if owner == worker {
			return job
		}
		u.postThreadJobLocked(job, owner)
	}
}

// waitLocked releases the lock until a job is posted, d elapses or the
// updater stops. It returns false on stop.
func (u *AsyncNavMeshUpdater) waitLocked(d time.Duration) bool {
	wake := u.hasJob
	u.mu.Unlock()
	defer u.mu.Lock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-wake:
		return true
	case <-timer.C:
		return true
	case <-u.stop:
		return false
	}
}

func (u *AsyncNavMeshUpdater) postThreadJobLocked(job *Job, owner int) {
	if u.threadQueues[owner].Push(job, time.Now()) {
		u.log.Debug("job handed over",
			zap.Stringer("tile", job.Tile),
			zap.Int("owner", owner))
		u.notifyHasJob()
	}
}

// finishJob releases the tile and requeues a failed job in the same critical
// section so Wait never observes a gap between them.
func (u *AsyncNavMeshUpdater) finishJob(job *Job, worker int, processed bool, log *zap.Logger) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.processing.Unlock(job.AgentHalfExtents, job.Tile, worker)
	if !processed {
		u.repostLocked(job, log)
	}
	if u.isIdleLocked() {
		u.notifyDone()
	}
}

func (u *AsyncNavMeshUpdater) repostLocked(job *Job, log *zap.Logger) {
	if u.stopped {
		return
	}
	if job.TryNumber >= u.settings.MaxJobRetries {
		log.Debug("dropping job after retries",
			zap.Stringer("tile", job.Tile),
			zap.Int("tries", job.TryNumber+1))
		return
	}
	retry := *job
	retry.TryNumber++
	if u.jobs.Push(&retry, time.Now()) {
		u.notifyHasJob()
	}
}

func (u *AsyncNavMeshUpdater) cleanupLastUpdates() {
	now := time.Now()
	u.mu.Lock()
	defer u.mu.Unlock()
	for key, last := range u.lastUpdates {
		if now.Sub(last) > u.settings.MinUpdateInterval {
			delete(u.lastUpdates, key)
		}
	}
}

func formatAgent(v common.Vec3) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X(), v.Y(), v.Z())
}
