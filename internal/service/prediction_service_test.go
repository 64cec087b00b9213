package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-advisor/internal/advisor"
	"github.com/andresuchdata/inventory-advisor/internal/cache"
	"github.com/andresuchdata/inventory-advisor/internal/domain"
	"github.com/andresuchdata/inventory-advisor/internal/metrics"
	"github.com/andresuchdata/inventory-advisor/internal/repository"
	"github.com/andresuchdata/inventory-advisor/internal/storage"
)

type fakeRepo struct {
	mu      sync.Mutex
	runs    map[string]*domain.PredictionRun
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{runs: map[string]*domain.PredictionRun{}}
}

func (r *fakeRepo) SaveRun(_ context.Context, run *domain.PredictionRun) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *fakeRepo) ListRuns(_ context.Context, limit int) ([]domain.PredictionRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PredictionRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (r *fakeRepo) GetRun(_ context.Context, id string) (*domain.PredictionRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return run, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*domain.PredictionResponse
	getErr  error
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*domain.PredictionResponse{}}
}

func (c *memoryCache) Get(_ context.Context, req domain.PredictionRequest) (*domain.PredictionResponse, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	key, err := cache.BuildPredictionKey(req)
	if err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return resp, ok, nil
}

func (c *memoryCache) Set(_ context.Context, req domain.PredictionRequest, resp *domain.PredictionResponse) error {
	key, err := cache.BuildPredictionKey(req)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp
	return nil
}

func (c *memoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*domain.PredictionResponse{}
	return nil
}

type fakeArchive struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	clock    time.Time
	err      error
}

func (a *fakeArchive) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range a.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: a.modified[key]})
		}
	}
	return out, nil
}

func (a *fakeArchive) DownloadObject(_ context.Context, key, destPath string) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	data, ok := a.objects[key]
	a.mu.Unlock()
	if !ok {
		return storage.ErrObjectNotFound
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (a *fakeArchive) UploadObject(_ context.Context, key string, data []byte) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
		a.modified = map[string]time.Time{}
		a.clock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	a.clock = a.clock.Add(time.Second)
	a.objects[key] = data
	a.modified[key] = a.clock
	return nil
}

func sampleRequest() domain.PredictionRequest {
	return domain.PredictionRequest{
		Sales: []map[string]any{
			{"product": "A", "date": "2024-01-01", "quantity": 10},
			{"product": "A", "date": "2024-01-02", "quantity": 10},
		},
		Products: []map[string]any{
			{"product": "A", "current_stock": 50, "shelf_life_days": 30, "lead_time_days": 7},
		},
		Config: map[string]any{},
	}
}

func TestPredictPersistsAndArchives(t *testing.T) {
	repo := newFakeRepo()
	archive := &fakeArchive{}
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), repo, nil, archive, metrics.New())

	run, err := svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{SalesSource: "sales.csv", ProductsSource: "products.csv"})
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.ProductCount)
	assert.Equal(t, "sales.csv", run.SalesSource)
	require.Len(t, run.Response.Predictions, 1)
	assert.Equal(t, "A", run.Response.Predictions[0].Product)

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Same(t, run, stored)

	assert.Contains(t, archive.objects, "runs/"+run.ID+"/response.json")
	assert.Contains(t, archive.objects, "runs/"+run.ID+"/run.json")
	require.Contains(t, archive.objects, "runs/"+run.ID+"/request.json")

	var archived domain.PredictionRequest
	require.NoError(t, json.Unmarshal(archive.objects["runs/"+run.ID+"/request.json"], &archived))
	assert.EqualValues(t, 7, archived.Config[advisor.ConfigLeadTimeKey], "the resolved default lead time is recorded")
}

func TestPredictUsesCache(t *testing.T) {
	c := newMemoryCache()
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, c, nil, nil)

	first, err := svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{})
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{})
	require.NoError(t, err)

	assert.Equal(t, 1, c.hits)
	assert.Equal(t, first.Response, second.Response)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPredictCacheIsScopedByDefaultLeadTime(t *testing.T) {
	c := newMemoryCache()
	week := NewPredictionService(advisor.NewPredictor(advisor.Options{DefaultLeadTimeDays: 7}), nil, c, nil, nil)
	fortnight := NewPredictionService(advisor.NewPredictor(advisor.Options{DefaultLeadTimeDays: 14}), nil, c, nil, nil)

	req := sampleRequest()
	req.Products[0] = map[string]any{"product": "A", "current_stock": 50}

	first, err := week.Predict(context.Background(), req, domain.RunMeta{})
	require.NoError(t, err)
	second, err := fortnight.Predict(context.Background(), req, domain.RunMeta{})
	require.NoError(t, err)

	assert.Zero(t, c.hits)
	assert.Equal(t, 7, first.Response.Predictions[0].LeadTimeDays)
	assert.Equal(t, 14, second.Response.Predictions[0].LeadTimeDays)

	// An explicit request lead time overrides either default and shares one entry.
	req.Config = map[string]any{"lead_time": 10}
	_, err = week.Predict(context.Background(), req, domain.RunMeta{})
	require.NoError(t, err)
	third, err := fortnight.Predict(context.Background(), req, domain.RunMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
	assert.Equal(t, 10, third.Response.Predictions[0].LeadTimeDays)
}

func TestPredictDoesNotMutateRequestConfig(t *testing.T) {
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, nil, nil, nil)
	req := sampleRequest()

	_, err := svc.Predict(context.Background(), req, domain.RunMeta{})
	require.NoError(t, err)
	assert.Empty(t, req.Config)
}

func TestFlushCache(t *testing.T) {
	c := newMemoryCache()
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, c, nil, nil)

	_, err := svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{})
	require.NoError(t, err)
	require.Len(t, c.entries, 1)

	require.NoError(t, svc.FlushCache(context.Background()))
	assert.Empty(t, c.entries)

	_, err = svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{})
	require.NoError(t, err)
	assert.Zero(t, c.hits)
}

func TestPredictIgnoresCacheAndArchiveFailures(t *testing.T) {
	c := newMemoryCache()
	c.getErr = errors.New("redis down")
	archive := &fakeArchive{err: errors.New("bucket gone")}
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, c, archive, nil)

	run, err := svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{})
	require.NoError(t, err)
	assert.Len(t, run.Response.Predictions, 1)
}

func TestPredictFailsWhenSaveFails(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = errors.New("connection refused")
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), repo, nil, nil, nil)

	_, err := svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.saveErr)
}

func TestHistoryWithoutRepository(t *testing.T) {
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, nil, nil, nil)

	_, err := svc.ListRuns(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.GetRun(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestHistoryFromArchive(t *testing.T) {
	archive := &fakeArchive{}
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, nil, archive, nil)
	ctx := context.Background()

	first, err := svc.Predict(ctx, sampleRequest(), domain.RunMeta{SalesSource: "sales.csv"})
	require.NoError(t, err)
	second, err := svc.Predict(ctx, sampleRequest(), domain.RunMeta{SalesSource: "sales.xlsx"})
	require.NoError(t, err)

	runs, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	for _, run := range runs {
		assert.Nil(t, run.Response, "listings carry metadata only")
		assert.Equal(t, 1, run.ProductCount)
	}

	latest, err := svc.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, second.ID, latest[0].ID)

	got, err := svc.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "sales.csv", got.SalesSource)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, first.Response, got.Response)

	_, err = svc.GetRun(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestHistoryPrefersRepositoryOverArchive(t *testing.T) {
	repo := newFakeRepo()
	archive := &fakeArchive{}
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), repo, nil, archive, nil)

	run, err := svc.Predict(context.Background(), sampleRequest(), domain.RunMeta{})
	require.NoError(t, err)

	got, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Same(t, run, got)
}

func TestHistoryArchiveFailure(t *testing.T) {
	archive := &fakeArchive{err: errors.New("bucket gone")}
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), nil, nil, archive, nil)

	_, err := svc.ListRuns(context.Background(), 10)
	assert.ErrorIs(t, err, archive.err)
	_, err = svc.GetRun(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, archive.err)
}

func TestGetRunRejectsMalformedID(t *testing.T) {
	svc := NewPredictionService(advisor.NewPredictor(advisor.Options{}), newFakeRepo(), nil, nil, nil)

	_, err := svc.GetRun(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}
