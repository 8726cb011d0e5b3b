package postgres

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vidstream/domain/models"
	"vidstream/domain/repositories"
)

// whole seconds in UTC: sqlite compares the stored timestamps as text
var repoNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// the postgres DDL from AutoMigrate uses gen_random_uuid(), so the schema is
// spelled out with the same column names
var testSchema = []string{
	`CREATE TABLE videos (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		duration INTEGER DEFAULT 0,
		status TEXT DEFAULT 'pending',
		video_url TEXT,
		thumbnail_url TEXT,
		views INTEGER DEFAULT 0,
		processing_progress INTEGER DEFAULT 0,
		processing_error TEXT,
		processing_started_at DATETIME,
		processing_heartbeat_at DATETIME,
		published_at DATETIME,
		trending_score REAL DEFAULT 0,
		last_trending_update DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE view_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id TEXT NOT NULL,
		views INTEGER NOT NULL,
		captured_at DATETIME NOT NULL
	)`,
	`CREATE TABLE comments (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		content TEXT,
		created_at DATETIME
	)`,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "vidstream.db")), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return repoNow },
	})
	require.NoError(t, err)
	for _, ddl := range testSchema {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func testID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func ptr[T any](v T) *T { return &v }

func seedVideos(t *testing.T, db *gorm.DB, videos ...*models.Video) {
	t.Helper()
	for _, v := range videos {
		if v.UserID == uuid.Nil {
			v.UserID = testID(999)
		}
		if v.Title == "" {
			v.Title = "clip " + v.ID.String()
		}
		require.NoError(t, db.Create(v).Error)
	}
}

func loadVideo(t *testing.T, repo repositories.VideoRepository, id uuid.UUID) *models.Video {
	t.Helper()
	v, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return v
}

// ═══════════════════════════════════════════════════════════════════════════════
// Lifecycle transitions
// ═══════════════════════════════════════════════════════════════════════════════

func TestVideoRepositoryClaimIsConditional(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusPending, ProcessingError: ptr("old attempt")},
		&models.Video{ID: testID(2), Status: models.VideoStatusReady},
	)

	tests := []struct {
		name string
		id   uuid.UUID
		want bool
	}{
		{"pending video is claimed", testID(1), true},
		{"second claim loses", testID(1), false},
		{"ready video is not claimed", testID(2), false},
		{"unknown video", testID(3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claimed, err := repo.ClaimForProcessing(ctx, tt.id, repoNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, claimed)
		})
	}

	got := loadVideo(t, repo, testID(1))
	assert.Equal(t, models.VideoStatusProcessing, got.Status)
	assert.Equal(t, 10, got.ProcessingProgress)
	assert.Nil(t, got.ProcessingError)
	require.NotNil(t, got.ProcessingStartedAt)
	require.NotNil(t, got.ProcessingHeartbeatAt)
	assert.WithinDuration(t, repoNow, *got.ProcessingStartedAt, 0)
	assert.WithinDuration(t, repoNow, *got.ProcessingHeartbeatAt, 0)
	assert.Equal(t, models.VideoStatusReady, loadVideo(t, repo, testID(2)).Status)

	_, err := repo.GetByID(ctx, testID(3))
	assert.ErrorIs(t, err, repositories.ErrVideoNotFound)
}

func TestVideoRepositoryProgressAndHeartbeatOnlyWhileProcessing(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	started := repoNow.Add(-time.Hour)
	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusProcessing, ProcessingProgress: 10, ProcessingStartedAt: &started},
		&models.Video{ID: testID(2), Status: models.VideoStatusReady, ProcessingProgress: 100},
	)

	beat := repoNow.Add(-30 * time.Minute)
	require.NoError(t, repo.UpdateProgress(ctx, testID(1), 40, beat))
	require.NoError(t, repo.UpdateProgress(ctx, testID(2), 40, beat))

	got := loadVideo(t, repo, testID(1))
	assert.Equal(t, 40, got.ProcessingProgress)
	require.NotNil(t, got.ProcessingHeartbeatAt)
	assert.WithinDuration(t, beat, *got.ProcessingHeartbeatAt, 0)

	require.NoError(t, repo.Heartbeat(ctx, testID(1), repoNow))
	require.NoError(t, repo.Heartbeat(ctx, testID(2), repoNow))

	got = loadVideo(t, repo, testID(1))
	assert.Equal(t, 40, got.ProcessingProgress, "heartbeat leaves progress alone")
	assert.WithinDuration(t, repoNow, *got.ProcessingHeartbeatAt, 0)

	ready := loadVideo(t, repo, testID(2))
	assert.Equal(t, 100, ready.ProcessingProgress)
	assert.Nil(t, ready.ProcessingHeartbeatAt)
}

func TestVideoRepositoryMarkReadySetsPublishedAtOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	firstPublished := repoNow.Add(-72 * time.Hour)
	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusProcessing, ProcessingProgress: 90},
		// reprocessed video keeps its original publish time
		&models.Video{ID: testID(2), Status: models.VideoStatusProcessing, PublishedAt: &firstPublished},
		&models.Video{ID: testID(3), Status: models.VideoStatusPending},
	)
	update := repositories.ReadyUpdate{VideoURL: "https://cdn.test/v/playlist.m3u8", ThumbnailURL: "https://cdn.test/v/thumbnail.jpg"}

	require.NoError(t, repo.MarkReady(ctx, testID(1), update, repoNow))
	require.NoError(t, repo.MarkReady(ctx, testID(2), update, repoNow))
	assert.ErrorIs(t, repo.MarkReady(ctx, testID(3), update, repoNow), repositories.ErrStatusConflict)
	assert.ErrorIs(t, repo.MarkReady(ctx, testID(1), update, repoNow.Add(time.Hour)), repositories.ErrStatusConflict)

	got := loadVideo(t, repo, testID(1))
	assert.Equal(t, models.VideoStatusReady, got.Status)
	assert.Equal(t, 100, got.ProcessingProgress)
	require.NotNil(t, got.VideoURL)
	assert.Equal(t, update.VideoURL, *got.VideoURL)
	require.NotNil(t, got.ThumbnailURL)
	assert.Equal(t, update.ThumbnailURL, *got.ThumbnailURL)
	require.NotNil(t, got.PublishedAt)
	assert.WithinDuration(t, repoNow, *got.PublishedAt, 0)

	again := loadVideo(t, repo, testID(2))
	require.NotNil(t, again.PublishedAt)
	assert.WithinDuration(t, firstPublished, *again.PublishedAt, 0)

	assert.Equal(t, models.VideoStatusPending, loadVideo(t, repo, testID(3)).Status)
}

func TestVideoRepositoryMarkFailedKeepsProgress(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusProcessing, ProcessingProgress: 70},
		&models.Video{ID: testID(2), Status: models.VideoStatusReady, ProcessingProgress: 100},
	)

	require.NoError(t, repo.MarkFailed(ctx, testID(1), "ffmpeg failed: exit status 1"))
	assert.ErrorIs(t, repo.MarkFailed(ctx, testID(1), "again"), repositories.ErrStatusConflict)
	assert.ErrorIs(t, repo.MarkFailed(ctx, testID(2), "late reaper"), repositories.ErrStatusConflict)

	got := loadVideo(t, repo, testID(1))
	assert.Equal(t, models.VideoStatusFailed, got.Status)
	assert.Equal(t, 70, got.ProcessingProgress)
	require.NotNil(t, got.ProcessingError)
	assert.Equal(t, "ffmpeg failed: exit status 1", *got.ProcessingError)

	ready := loadVideo(t, repo, testID(2))
	assert.Equal(t, models.VideoStatusReady, ready.Status)
	assert.Nil(t, ready.ProcessingError)
}

func TestVideoRepositoryGetStuckProcessingUsesHeartbeat(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	longAgo := repoNow.Add(-3 * time.Hour)
	stale := repoNow.Add(-20 * time.Minute)
	fresh := repoNow.Add(-time.Minute)
	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusProcessing, ProcessingStartedAt: &longAgo, ProcessingHeartbeatAt: &stale},
		&models.Video{ID: testID(2), Status: models.VideoStatusProcessing, ProcessingStartedAt: &longAgo, ProcessingHeartbeatAt: &fresh},
		&models.Video{ID: testID(3), Status: models.VideoStatusProcessing, ProcessingStartedAt: &longAgo},
		&models.Video{ID: testID(4), Status: models.VideoStatusFailed, ProcessingStartedAt: &longAgo, ProcessingHeartbeatAt: &stale},
		&models.Video{ID: testID(5), Status: models.VideoStatusPending},
	)

	stuck, err := repo.GetStuckProcessing(context.Background(), repoNow.Add(-15*time.Minute))
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, v := range stuck {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{testID(1), testID(3)}, ids)
}

func TestVideoRepositoryCountByStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusPending},
		&models.Video{ID: testID(2), Status: models.VideoStatusPending},
		&models.Video{ID: testID(3), Status: models.VideoStatusReady},
	)

	n, err := repo.CountByStatus(context.Background(), models.VideoStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Trending
// ═══════════════════════════════════════════════════════════════════════════════

func seedTrending(t *testing.T, db *gorm.DB) {
	t.Helper()
	recent := repoNow.Add(-2 * time.Hour)
	lastWeek := repoNow.Add(-5 * 24 * time.Hour)
	old := repoNow.Add(-60 * 24 * time.Hour)

	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusReady, Category: ptr("music"), TrendingScore: 50, PublishedAt: &recent},
		&models.Video{ID: testID(2), Status: models.VideoStatusReady, Category: ptr("gaming"), TrendingScore: 80, PublishedAt: &lastWeek},
		// tie with 2, id breaks it
		&models.Video{ID: testID(3), Status: models.VideoStatusReady, Category: ptr("music"), TrendingScore: 80, PublishedAt: &old},
		&models.Video{ID: testID(4), Status: models.VideoStatusReady, TrendingScore: 10, PublishedAt: &recent},
		&models.Video{ID: testID(5), Status: models.VideoStatusReady, Category: ptr("news"), TrendingScore: 0, PublishedAt: &recent},
		&models.Video{ID: testID(6), Status: models.VideoStatusProcessing, Category: ptr("sports"), TrendingScore: 99, PublishedAt: &recent},
		&models.Video{ID: testID(7), Status: models.VideoStatusReady, Category: ptr(""), TrendingScore: 5, PublishedAt: &recent},
	)
}

func TestVideoRepositoryFindTrending(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	seedTrending(t, db)

	tests := []struct {
		name      string
		filter    repositories.TrendingFilter
		wantIDs   []uuid.UUID
		wantTotal int64
	}{
		{
			name:      "all time, score desc then id",
			filter:    repositories.TrendingFilter{Limit: 10},
			wantIDs:   []uuid.UUID{testID(2), testID(3), testID(1), testID(4), testID(7)},
			wantTotal: 5,
		},
		{
			name:      "last day",
			filter:    repositories.TrendingFilter{Since: repoNow.Add(-24 * time.Hour), Limit: 10},
			wantIDs:   []uuid.UUID{testID(1), testID(4), testID(7)},
			wantTotal: 3,
		},
		{
			name:      "since is inclusive",
			filter:    repositories.TrendingFilter{Since: repoNow.Add(-2 * time.Hour), Limit: 10},
			wantIDs:   []uuid.UUID{testID(1), testID(4), testID(7)},
			wantTotal: 3,
		},
		{
			name:      "category",
			filter:    repositories.TrendingFilter{Category: "music", Limit: 10},
			wantIDs:   []uuid.UUID{testID(3), testID(1)},
			wantTotal: 2,
		},
		{
			name:      "category and window",
			filter:    repositories.TrendingFilter{Category: "music", Since: repoNow.Add(-7 * 24 * time.Hour), Limit: 10},
			wantIDs:   []uuid.UUID{testID(1)},
			wantTotal: 1,
		},
		{
			name:      "second page keeps the full total",
			filter:    repositories.TrendingFilter{Limit: 2, Offset: 2},
			wantIDs:   []uuid.UUID{testID(1), testID(4)},
			wantTotal: 5,
		},
		{
			name:      "past the end",
			filter:    repositories.TrendingFilter{Limit: 2, Offset: 10},
			wantIDs:   nil,
			wantTotal: 5,
		},
		{
			name:      "unknown category",
			filter:    repositories.TrendingFilter{Category: "cooking", Limit: 10},
			wantIDs:   nil,
			wantTotal: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos, total, err := repo.FindTrending(context.Background(), tt.filter)
			require.NoError(t, err)

			var ids []uuid.UUID
			for _, v := range videos {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestVideoRepositoryListTrendingCategories(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	seedTrending(t, db)

	categories, err := repo.ListTrendingCategories(context.Background())

	require.NoError(t, err)
	// news has no score, sports is not ready, null and empty are skipped
	assert.Equal(t, []string{"gaming", "music"}, categories)
}

func TestVideoRepositoryScoreBatchAndUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	seedVideos(t, db,
		&models.Video{ID: testID(1), Status: models.VideoStatusReady, Views: 10},
		&models.Video{ID: testID(2), Status: models.VideoStatusProcessing},
		&models.Video{ID: testID(3), Status: models.VideoStatusReady, Views: 30},
		&models.Video{ID: testID(4), Status: models.VideoStatusReady, Views: 40},
	)

	first, err := repo.ListReadyBatch(ctx, uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, testID(1), first[0].ID)
	assert.Equal(t, testID(3), first[1].ID)
	assert.Equal(t, int64(30), first[1].Views)

	rest, err := repo.ListReadyBatch(ctx, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, testID(4), rest[0].ID)

	require.NoError(t, repo.UpdateTrendingScore(ctx, testID(1), 12.5, repoNow))
	require.NoError(t, repo.UpdateTrendingScore(ctx, testID(2), 99, repoNow))

	got := loadVideo(t, repo, testID(1))
	assert.InDelta(t, 12.5, got.TrendingScore, 1e-9)
	require.NotNil(t, got.LastTrendingUpdate)
	assert.WithinDuration(t, repoNow, *got.LastTrendingUpdate, 0)

	processing := loadVideo(t, repo, testID(2))
	assert.Zero(t, processing.TrendingScore)
	assert.Nil(t, processing.LastTrendingUpdate)
}

func TestVideoRepositoryCountComments(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Comment{ID: uuid.New(), VideoID: testID(1), UserID: testID(9), Content: "nice"}).Error)
	}
	require.NoError(t, db.Create(&models.Comment{ID: uuid.New(), VideoID: testID(2), UserID: testID(9)}).Error)

	n, err := repo.CountComments(context.Background(), testID(1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// ═══════════════════════════════════════════════════════════════════════════════
// View snapshots
// ═══════════════════════════════════════════════════════════════════════════════

func TestViewSnapshotRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewViewSnapshotRepository(db)
	ctx := context.Background()

	var batch []*models.ViewSnapshot
	for i := 0; i < 5; i++ {
		batch = append(batch, &models.ViewSnapshot{
			VideoID:   testID(1),
			Views:     int64(100 * (i + 1)),
			Timestamp: repoNow.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	batch = append(batch, &models.ViewSnapshot{VideoID: testID(2), Views: 7, Timestamp: repoNow})

	require.NoError(t, repo.CreateBatch(ctx, batch))
	require.NoError(t, repo.CreateBatch(ctx, nil))

	recent, err := repo.GetRecent(ctx, testID(1), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(100), recent[0].Views, "newest first")
	assert.Equal(t, int64(200), recent[1].Views)
	assert.WithinDuration(t, repoNow, recent[0].Timestamp, 0)

	// three and four days old go
	deleted, err := repo.DeleteOlderThan(ctx, repoNow.Add(-60*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	left, err := repo.GetRecent(ctx, testID(1), 10)
	require.NoError(t, err)
	assert.Len(t, left, 3)

	other, err := repo.GetRecent(ctx, testID(2), 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
