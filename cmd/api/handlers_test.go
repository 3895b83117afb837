package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/internal/abtest"
	"clipforge/internal/config"
	"clipforge/internal/database"
	"clipforge/internal/logging"
	"clipforge/pkg/models"
)

type fakeRepo struct {
	videos       map[string]*models.Video
	segments     map[string]*models.Segment
	clips        map[string]*models.Clip
	getClipCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		videos:   map[string]*models.Video{},
		segments: map[string]*models.Segment{},
		clips:    map[string]*models.Clip{},
	}
}

func (r *fakeRepo) Health(ctx context.Context) error { return nil }

func (r *fakeRepo) CreateVideo(ctx context.Context, video *models.Video) error {
	video.ID = fmt.Sprintf("v%d", len(r.videos)+1)
	r.videos[video.ID] = video
	return nil
}

func (r *fakeRepo) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	v, ok := r.videos[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return v, nil
}

func (r *fakeRepo) ListSegmentsByVideo(ctx context.Context, videoID string) ([]*models.Segment, error) {
	var out []*models.Segment
	for _, s := range r.segments {
		if s.VideoID == videoID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	s, ok := r.segments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) CreateClip(ctx context.Context, clip *models.Clip) error {
	clip.ID = fmt.Sprintf("c%d", len(r.clips)+1)
	r.clips[clip.ID] = clip
	return nil
}

func (r *fakeRepo) GetClip(ctx context.Context, id string) (*models.Clip, error) {
	r.getClipCalls++
	cl, ok := r.clips[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return cl, nil
}

func (r *fakeRepo) ListClipsByVideo(ctx context.Context, videoID string) ([]*models.Clip, error) {
	var out []*models.Clip
	for _, cl := range r.clips {
		if cl.VideoID == videoID {
			out = append(out, cl)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateJobLog(ctx context.Context, jobType models.JobType) (*models.JobLog, error) {
	return &models.JobLog{ID: "log-1", Type: jobType, Status: models.JobLogQueued}, nil
}

type fakeQueue struct {
	jobs []*models.Job
}

func (q *fakeQueue) Push(ctx context.Context, job *models.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeCache struct {
	clips   map[string]*models.Clip
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{clips: map[string]*models.Clip{}}
}

func (c *fakeCache) GetClip(ctx context.Context, clipID string) (*models.Clip, error) {
	return c.clips[clipID], nil
}

func (c *fakeCache) SetClip(ctx context.Context, clip *models.Clip, ttl time.Duration) error {
	c.clips[clip.ID] = clip
	return nil
}

func (c *fakeCache) DeleteClip(ctx context.Context, clipID string) error {
	delete(c.clips, clipID)
	c.deleted = append(c.deleted, clipID)
	return nil
}

type fakeAB struct {
	startErr error
	stopErr  error
	started  []string
	stopped  []string
}

func (a *fakeAB) Start(ctx context.Context, clipID string) error {
	if a.startErr != nil {
		return a.startErr
	}
	a.started = append(a.started, clipID)
	return nil
}

func (a *fakeAB) Stop(ctx context.Context, clipID string) error {
	if a.stopErr != nil {
		return a.stopErr
	}
	a.stopped = append(a.stopped, clipID)
	return nil
}

type apiFixture struct {
	router *gin.Engine
	repo   *fakeRepo
	queue  *fakeQueue
	cache  *fakeCache
	ab     *fakeAB
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		repo:  newFakeRepo(),
		queue: &fakeQueue{},
		cache: newFakeCache(),
		ab:    &fakeAB{},
	}
	cfg := &config.Config{}
	cfg.Media.RootDir = t.TempDir()
	cfg.Media.BaseURL = "/static"

	api := &API{
		cfg:    cfg,
		repo:   f.repo,
		queue:  f.queue,
		cache:  f.cache,
		ab:     f.ab,
		logger: logging.NewNop(),
	}
	f.router = setupRouter(api)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateVideoQueuesIngest(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/videos", gin.H{
		"source_url": "https://example.com/talk.mp4",
		"title":      "My Talk",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var video models.Video
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &video))
	assert.Equal(t, "v1", video.ID)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, models.JobIngest, job.Type)
	assert.Equal(t, "v1", job.VideoID)
	assert.Equal(t, "log-1", job.LogID)
}

func TestCreateVideoRequiresSourceURL(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/videos", gin.H{"title": "no source"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.queue.jobs)
}

func TestGetVideoNotFound(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/videos/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeVideoQueued(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.videos["v1"] = &models.Video{ID: "v1"}

	w := f.do(t, http.MethodPost, "/api/v1/videos/v1/analyze", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, models.JobAnalyze, f.queue.jobs[0].Type)
}

func TestAutoRenderPassesTopK(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.videos["v1"] = &models.Video{ID: "v1"}

	w := f.do(t, http.MethodPost, "/api/v1/videos/v1/auto-render", gin.H{"top_k": 5})
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, models.JobAutoRender, f.queue.jobs[0].Type)
	assert.Equal(t, 5, f.queue.jobs[0].TopK)
}

func TestCreateClipFromSegment(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.segments["s1"] = &models.Segment{ID: "s1", VideoID: "v1", Start: 12.0, End: 40.5}

	w := f.do(t, http.MethodPost, "/api/v1/clips", gin.H{
		"video_id":   "v1",
		"segment_id": "s1",
		"keywords":   []string{"secret"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var clip models.Clip
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clip))
	assert.Equal(t, models.AspectVertical, clip.AspectRatio)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, models.JobRender, job.Type)
	assert.Equal(t, clip.ID, job.ClipID)
	assert.Equal(t, 12.0, job.Start)
	assert.Equal(t, 40.5, job.End)
}

func TestCreateClipValidation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/clips", gin.H{"video_id": "v1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/clips", gin.H{
		"video_id":     "v1",
		"start":        0.0,
		"end":          10.0,
		"aspect_ratio": "4:3",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/clips", gin.H{
		"video_id":   "v1",
		"segment_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Empty(t, f.queue.jobs)
}

func TestGetClipUsesCache(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.clips["c1"] = &models.Clip{ID: "c1", VideoID: "v1"}

	w := f.do(t, http.MethodGet, "/api/v1/clips/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.repo.getClipCalls)

	// Second read is served from the cache
	w = f.do(t, http.MethodGet, "/api/v1/clips/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.repo.getClipCalls)
}

func TestCreateThumbnailsAB(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.clips["c1"] = &models.Clip{ID: "c1", VideoID: "v1"}

	w := f.do(t, http.MethodPost, "/api/v1/clips/c1/thumbnails/ab", gin.H{"title_a": "A side"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/clips/c1/thumbnails/ab", gin.H{
		"title_a": "A side",
		"title_b": "B side",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, models.JobThumbnailsAB, job.Type)
	assert.Equal(t, "c1", job.ClipID)
	assert.Equal(t, "A side", job.TitleA)
	assert.Equal(t, "B side", job.TitleB)
}

func TestSetThumbnailRequiresKey(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.clips["c1"] = &models.Clip{ID: "c1", VideoID: "v1"}

	w := f.do(t, http.MethodPost, "/api/v1/clips/c1/thumbnail/set", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/clips/c1/thumbnail/set", gin.H{"key": "S2"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, models.JobThumbSet, f.queue.jobs[0].Type)
	assert.Equal(t, "S2", f.queue.jobs[0].StyleKey)
}

func TestStartABTest(t *testing.T) {
	f := newAPIFixture(t)
	f.cache.clips["c1"] = &models.Clip{ID: "c1"}

	w := f.do(t, http.MethodPost, "/api/v1/clips/c1/ab/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"c1"}, f.ab.started)
	assert.Equal(t, []string{"c1"}, f.cache.deleted)
}

func TestStartABTestConflict(t *testing.T) {
	f := newAPIFixture(t)
	f.ab.startErr = abtest.ErrVariantsMissing

	w := f.do(t, http.MethodPost, "/api/v1/clips/c1/ab/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStopABTestNotRunning(t *testing.T) {
	f := newAPIFixture(t)
	f.ab.stopErr = abtest.ErrNotRunning

	w := f.do(t, http.MethodPost, "/api/v1/clips/c1/ab/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
