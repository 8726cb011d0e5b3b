package serviceimpl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidstream/domain/models"
	"vidstream/domain/ports"
	"vidstream/domain/repositories"
	"vidstream/pkg/scheduler"
)

// ═══════════════════════════════════════════════════════════════════════════════
// Video repository
// ═══════════════════════════════════════════════════════════════════════════════

type fakeVideoRepo struct {
	mu       sync.Mutex
	videos   map[uuid.UUID]*models.Video
	comments map[uuid.UUID]int64
	progress map[uuid.UUID][]int

	claimErr     error
	scoreErrFor  map[uuid.UUID]error
	commentCalls int
	heartbeats   int
}

func newFakeVideoRepo(videos ...*models.Video) *fakeVideoRepo {
	r := &fakeVideoRepo{
		videos:      make(map[uuid.UUID]*models.Video),
		comments:    make(map[uuid.UUID]int64),
		progress:    make(map[uuid.UUID][]int),
		scoreErrFor: make(map[uuid.UUID]error),
	}
	for _, v := range videos {
		r.videos[v.ID] = v
	}
	return r
}

func (r *fakeVideoRepo) get(id uuid.UUID) models.Video {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.videos[id]
}

func (r *fakeVideoRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *fakeVideoRepo) ClaimForProcessing(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return false, r.claimErr
	}
	v, ok := r.videos[id]
	if !ok || v.Status != models.VideoStatusPending {
		return false, nil
	}
	v.Status = models.VideoStatusProcessing
	v.ProcessingProgress = 10
	v.ProcessingError = nil
	v.ProcessingStartedAt = &now
	v.ProcessingHeartbeatAt = &now
	r.progress[id] = append(r.progress[id], 10)
	return true, nil
}

func (r *fakeVideoRepo) UpdateProgress(_ context.Context, id uuid.UUID, progress int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if ok && v.Status == models.VideoStatusProcessing {
		v.ProcessingProgress = progress
		v.ProcessingHeartbeatAt = &at
		r.progress[id] = append(r.progress[id], progress)
	}
	return nil
}

func (r *fakeVideoRepo) Heartbeat(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if ok && v.Status == models.VideoStatusProcessing {
		v.ProcessingHeartbeatAt = &at
		r.heartbeats++
	}
	return nil
}

func (r *fakeVideoRepo) heartbeatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heartbeats
}

func (r *fakeVideoRepo) MarkReady(_ context.Context, id uuid.UUID, update repositories.ReadyUpdate, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok || v.Status != models.VideoStatusProcessing {
		return repositories.ErrStatusConflict
	}
	v.Status = models.VideoStatusReady
	v.VideoURL = &update.VideoURL
	v.ThumbnailURL = &update.ThumbnailURL
	v.ProcessingProgress = 100
	if v.PublishedAt == nil {
		v.PublishedAt = &now
	}
	r.progress[id] = append(r.progress[id], 100)
	return nil
}

func (r *fakeVideoRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok || v.Status != models.VideoStatusProcessing {
		return repositories.ErrStatusConflict
	}
	v.Status = models.VideoStatusFailed
	v.ProcessingError = &message
	return nil
}

func (r *fakeVideoRepo) sortedReady() []*models.Video {
	var out []*models.Video
	for _, v := range r.videos {
		if v.Status == models.VideoStatusReady {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *fakeVideoRepo) ListReadyBatch(_ context.Context, afterID uuid.UUID, limit int) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Video
	for _, v := range r.sortedReady() {
		if v.ID.String() > afterID.String() {
			cp := *v
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) UpdateTrendingScore(_ context.Context, id uuid.UUID, score float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.scoreErrFor[id]; err != nil {
		return err
	}
	v, ok := r.videos[id]
	if ok && v.Status == models.VideoStatusReady {
		v.TrendingScore = score
		v.LastTrendingUpdate = &at
	}
	return nil
}

func (r *fakeVideoRepo) CountComments(_ context.Context, videoID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commentCalls++
	return r.comments[videoID], nil
}

func (r *fakeVideoRepo) FindTrending(_ context.Context, filter repositories.TrendingFilter) ([]*models.Video, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Video
	for _, v := range r.videos {
		if v.Status != models.VideoStatusReady || v.TrendingScore <= 0 {
			continue
		}
		if filter.Category != "" && v.CategoryName() != filter.Category {
			continue
		}
		if !filter.Since.IsZero() && (v.PublishedAt == nil || v.PublishedAt.Before(filter.Since)) {
			continue
		}
		cp := *v
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TrendingScore != matched[j].TrendingScore {
			return matched[i].TrendingScore > matched[j].TrendingScore
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

func (r *fakeVideoRepo) ListTrendingCategories(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, v := range r.videos {
		c := v.CategoryName()
		if v.Status != models.VideoStatusReady || v.TrendingScore <= 0 || c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeVideoRepo) GetStuckProcessing(_ context.Context, threshold time.Time) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Video
	for _, v := range r.videos {
		if v.Status != models.VideoStatusProcessing {
			continue
		}
		last := v.ProcessingHeartbeatAt
		if last == nil {
			last = v.ProcessingStartedAt
		}
		if last != nil && last.Before(threshold) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) CountByStatus(_ context.Context, status models.VideoStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, v := range r.videos {
		if v.Status == status {
			n++
		}
	}
	return n, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Snapshot repository
// ═══════════════════════════════════════════════════════════════════════════════

type fakeSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []*models.ViewSnapshot
	getErrFor map[uuid.UUID]error
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{getErrFor: make(map[uuid.UUID]error)}
}

func (r *fakeSnapshotRepo) CreateBatch(_ context.Context, snapshots []*models.ViewSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshots...)
	return nil
}

func (r *fakeSnapshotRepo) GetRecent(_ context.Context, videoID uuid.UUID, limit int) ([]*models.ViewSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.getErrFor[videoID]; err != nil {
		return nil, err
	}
	var out []*models.ViewSnapshot
	for _, s := range r.snapshots {
		if s.VideoID == videoID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSnapshotRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.snapshots[:0]
	var deleted int64
	for _, s := range r.snapshots {
		if s.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.snapshots = kept
	return deleted, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Transcoder
// ═══════════════════════════════════════════════════════════════════════════════

type fakeTranscoder struct {
	mu       sync.Mutex
	calls    []string
	segments int
	duration float64

	infoErr   error
	thumbErr   error
	segmentErr error
	thumbSpecs []ports.ThumbnailSpec
	onSegment  func() // runs inside SegmentHLS, e.g. to move a clock
}

func (t *fakeTranscoder) record(call string) {
	t.mu.Lock()
	t.calls = append(t.calls, call)
	t.mu.Unlock()
}

func (t *fakeTranscoder) GetVideoInfo(_ context.Context, _ string) (*ports.VideoInfo, error) {
	t.record("info")
	if t.infoErr != nil {
		return nil, t.infoErr
	}
	return &ports.VideoInfo{Duration: t.duration, Width: 1920, Height: 1080, Codec: "h264"}, nil
}

func (t *fakeTranscoder) GenerateThumbnail(_ context.Context, _, output string, spec ports.ThumbnailSpec) error {
	t.record("thumbnail")
	t.thumbSpecs = append(t.thumbSpecs, spec)
	if t.thumbErr != nil {
		return t.thumbErr
	}
	return os.WriteFile(output, []byte("jpg"), 0644)
}

func (t *fakeTranscoder) SegmentHLS(_ context.Context, _, outputDir string, _ ports.HLSSpec) (*ports.HLSResult, error) {
	t.record("segment")
	if t.onSegment != nil {
		t.onSegment()
	}
	if t.segmentErr != nil {
		return nil, t.segmentErr
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	result := &ports.HLSResult{ManifestPath: filepath.Join(outputDir, "playlist.m3u8")}
	for i := 0; i < t.segments; i++ {
		p := filepath.Join(outputDir, "segment_00"+string(rune('0'+i))+".ts")
		if err := os.WriteFile(p, []byte("ts"), 0644); err != nil {
			return nil, err
		}
		result.SegmentPaths = append(result.SegmentPaths, p)
	}
	return result, os.WriteFile(result.ManifestPath, []byte("#EXTM3U"), 0644)
}

func (t *fakeTranscoder) IsAvailable() bool { return true }

func (t *fakeTranscoder) called() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// ═══════════════════════════════════════════════════════════════════════════════
// Object store
// ═══════════════════════════════════════════════════════════════════════════════

type fakeStorage struct {
	mu      sync.Mutex
	order   []string
	objects map[string]bool
	deleted []string
	failOn  string // key suffix that fails

	beforePut func(key string)
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]bool)}
}

func (s *fakeStorage) put(key string) (string, error) {
	if s.beforePut != nil {
		s.beforePut(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && strings.HasSuffix(key, s.failOn) {
		return "", errors.New("bucket unavailable")
	}
	s.order = append(s.order, key)
	s.objects[key] = true
	return key, nil
}

func (s *fakeStorage) Upload(_ context.Context, localPath string, opts ports.UploadOptions) (string, error) {
	key, err := s.put(opts.Folder + "/" + opts.Filename)
	if err == nil && !opts.KeepLocal {
		os.Remove(localPath)
	}
	return key, err
}

func (s *fakeStorage) UploadFromPath(_ context.Context, _ string, key, _ string) (string, error) {
	return s.put(key)
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) GetPublicURL(key string) string { return "https://cdn.test/" + key }
func (s *fakeStorage) GetProviderName() string        { return "fake" }

// ═══════════════════════════════════════════════════════════════════════════════
// Progress publisher
// ═══════════════════════════════════════════════════════════════════════════════

type fakeProgress struct {
	mu     sync.Mutex
	events []ports.ProgressData
}

func (p *fakeProgress) PublishProgress(_ context.Context, data *ports.ProgressData) error {
	p.mu.Lock()
	p.events = append(p.events, *data)
	p.mu.Unlock()
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Scheduler
// ═══════════════════════════════════════════════════════════════════════════════

type fakeScheduler struct {
	exprs map[string]string
	tasks map[string]func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{exprs: map[string]string{}, tasks: map[string]func(){}}
}

func (s *fakeScheduler) Start()          {}
func (s *fakeScheduler) Stop()           {}
func (s *fakeScheduler) IsRunning() bool { return true }

func (s *fakeScheduler) AddJob(id, cronExpr string, task func()) error {
	if _, ok := s.tasks[id]; ok {
		return errors.New("duplicate job " + id)
	}
	s.exprs[id] = cronExpr
	s.tasks[id] = task
	return nil
}

func (s *fakeScheduler) RemoveJob(id string) error {
	delete(s.exprs, id)
	delete(s.tasks, id)
	return nil
}

func (s *fakeScheduler) GetJob(id string) (*scheduler.JobInfo, bool) {
	expr, ok := s.exprs[id]
	if !ok {
		return nil, false
	}
	return &scheduler.JobInfo{ID: id, CronExpr: expr, IsActive: true}, true
}

func (s *fakeScheduler) ListJobs() map[string]*scheduler.JobInfo {
	out := map[string]*scheduler.JobInfo{}
	for id := range s.exprs {
		out[id], _ = s.GetJob(id)
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// Locker / cache
// ═══════════════════════════════════════════════════════════════════════════════

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

type fakeQueue struct {
	status *ports.QueueStatus
	err    error
}

func (q *fakeQueue) Enqueue(context.Context, *ports.ProcessingJob) error { return nil }

func (q *fakeQueue) GetQueueStatus(context.Context) (*ports.QueueStatus, error) {
	return q.status, q.err
}

// ═══════════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════════

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
