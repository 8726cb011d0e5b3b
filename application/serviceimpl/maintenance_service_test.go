package serviceimpl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidstream/domain/models"
)

func TestStuckDetectorFailsOnlyStaleHeartbeats(t *testing.T) {
	longAgo := testNow.Add(-3 * time.Hour)
	staleBeat := testNow.Add(-20 * time.Minute)
	freshBeat := testNow.Add(-time.Minute)

	stuck := &models.Video{ID: uuid.New(), Status: models.VideoStatusProcessing, ProcessingStartedAt: &longAgo, ProcessingHeartbeatAt: &staleBeat, ProcessingProgress: 70}
	// long running but still beating
	alive := &models.Video{ID: uuid.New(), Status: models.VideoStatusProcessing, ProcessingStartedAt: &longAgo, ProcessingHeartbeatAt: &freshBeat}
	// claimed before heartbeats existed
	legacy := &models.Video{ID: uuid.New(), Status: models.VideoStatusProcessing, ProcessingStartedAt: &longAgo}
	done := &models.Video{ID: uuid.New(), Status: models.VideoStatusReady, ProcessingStartedAt: &longAgo, ProcessingHeartbeatAt: &staleBeat}
	repo := newFakeVideoRepo(stuck, alive, legacy, done)

	svc := NewStuckDetectorService(StuckDetectorConfig{StaleAfter: 15 * time.Minute}, repo, newFakeScheduler())
	svc.now = func() time.Time { return testNow }

	n, err := svc.RunDetection(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got := repo.get(stuck.ID)
	assert.Equal(t, models.VideoStatusFailed, got.Status)
	assert.Equal(t, 70, got.ProcessingProgress)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, "processing timed out: no heartbeat for 15m0s", *got.ProcessingError)
	assert.Equal(t, models.VideoStatusFailed, repo.get(legacy.ID).Status)
	assert.Equal(t, models.VideoStatusProcessing, repo.get(alive.ID).Status)
	assert.Equal(t, models.VideoStatusReady, repo.get(done.ID).Status)
}

func TestStuckDetectorRegistersJob(t *testing.T) {
	sched := newFakeScheduler()
	svc := NewStuckDetectorService(StuckDetectorConfig{}, newFakeVideoRepo(), sched)

	require.NoError(t, svc.RegisterDetectorJob())
	assert.Equal(t, "@every 5m", sched.exprs[stuckDetectorJob])
	assert.Error(t, svc.RegisterDetectorJob())
}

func TestStorageCleanupRemovesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, uuid.NewString())
	require.NoError(t, os.MkdirAll(filepath.Join(stale, "hls"), 0755))
	staleFile := filepath.Join(stale, "hls", "segment_000.ts")
	require.NoError(t, os.WriteFile(staleFile, []byte("0123456789"), 0644))
	old := now.Add(-48 * time.Hour)
	for _, p := range []string{staleFile, filepath.Join(stale, "hls"), stale} {
		require.NoError(t, os.Chtimes(p, old, old))
	}

	// old dir with a fresh file inside is a running job
	live := filepath.Join(dir, uuid.NewString())
	require.NoError(t, os.MkdirAll(live, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(live, "thumbnail.jpg"), []byte("jpg"), 0644))
	require.NoError(t, os.Chtimes(live, old, old))

	svc := NewStorageCleanupService(StorageCleanupConfig{TempPath: dir, MaxAge: 24 * time.Hour}, newFakeScheduler())
	svc.now = func() time.Time { return now }

	summary, err := svc.RunCleanup(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesRemoved)
	assert.Equal(t, int64(10), summary.BytesFreed)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, live)
}

func TestStorageCleanupMissingTempDir(t *testing.T) {
	svc := NewStorageCleanupService(StorageCleanupConfig{TempPath: filepath.Join(t.TempDir(), "absent")}, newFakeScheduler())

	summary, err := svc.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.FilesRemoved)

	stats, err := svc.GetStorageStats(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.DiskTotal, uint64(0))
	assert.Zero(t, stats.TempSize)
}
