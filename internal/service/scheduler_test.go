package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/contentops/cms-translator/internal/artifact"
	"github.com/contentops/cms-translator/internal/cms"
	"github.com/contentops/cms-translator/internal/jobstore"
	"github.com/contentops/cms-translator/internal/schema"
	"github.com/contentops/cms-translator/internal/tmcache"
	"github.com/contentops/cms-translator/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	refs      []cms.ItemRef
	documents map[string]cms.Item
	listErr   error
}

func (f *fakeFetcher) ListItems(_ context.Context, _ string) ([]cms.ItemRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeFetcher) FetchDocument(_ context.Context, _, slug string) (cms.Item, error) {
	item, ok := f.documents[slug]
	if !ok {
		return cms.Item{}, cms.ErrNotFound
	}
	return item, nil
}

type fakeDeliverer struct {
	mu     sync.Mutex
	nextID int64
	calls  int
	err    error
}

func (d *fakeDeliverer) Deliver(_ context.Context, _ string, _ int64, _ string, _ map[string]any) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = d.calls + 1
	if d.err != nil {
		return 0, d.err
	}
	d.nextID = d.nextID + 1
	return d.nextID, nil
}

type suffixTranslator struct{}

func (suffixTranslator) Translate(_ context.Context, texts []string, targetLanguage string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = t + "_" + targetLanguage
	}
	return out, nil
}

type brokenTranslator struct{}

func (brokenTranslator) Translate(_ context.Context, _ []string, _ string) ([]string, error) {
	return nil, fmt.Errorf("both backends exhausted")
}

type testEnv struct {
	store     *jobstore.Store
	caches    *tmcache.Set
	artifacts *artifact.Store
	fetcher   *fakeFetcher
	deliverer *fakeDeliverer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := jobstore.NewStore(filepath.Join(dir, "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &testEnv{
		store:     store,
		caches:    tmcache.NewSet(filepath.Join(dir, "cache.json")),
		artifacts: artifact.NewStore(filepath.Join(dir, "output")),
		fetcher: &fakeFetcher{
			refs: []cms.ItemRef{{ID: 7, Slug: "widget-report"}},
			documents: map[string]cms.Item{
				"widget-report": {ID: 7, Slug: "widget-report", Document: map[string]any{
					"title": "Widget Market Report",
					"slug":  "widget-report",
				}},
			},
		},
		deliverer: &fakeDeliverer{},
	}
}

func (e *testEnv) seedJob(t *testing.T) {
	t.Helper()
	_, err := e.store.InitializeJobs(context.Background(), "reports",
		[]jobstore.NewJobSpec{{Slug: "widget-report", SourceItemID: 7}}, []string{"fr"})
	require.NoError(t, err)
}

func (e *testEnv) job(t *testing.T) jobstore.Job {
	t.Helper()
	job, found, err := e.store.Get(context.Background(), "widget-report", "reports", "fr")
	require.NoError(t, err)
	require.True(t, found)
	return job
}

func (e *testEnv) translateScheduler(tr translator.Translator) *TranslateScheduler {
	docs := NewDocumentTranslator(schema.Default(), e.caches, tr)
	return NewTranslateScheduler(e.store, e.fetcher, docs, e.artifacts, 2, 10)
}

func TestTranslateSchedulerMovesJobToPendingUpload(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob(t)

	err := env.translateScheduler(suffixTranslator{}).RunOnce(context.Background())
	require.NoError(t, err)

	job := env.job(t)
	assert.Equal(t, jobstore.StatusPendingUpload, job.Status)
	assert.Empty(t, job.LastError)
	require.NotEmpty(t, job.ArtifactPath)

	a, err := env.artifacts.Load(job.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.SourceItemID)
	assert.Equal(t, "fr", a.TargetLanguage)
	assert.Equal(t, "Widget Market Report_fr", a.TranslatedDocument["title"])
	assert.Equal(t, "widget-report", a.TranslatedDocument["slug"])
}

func TestTranslateSchedulerRecordsBackendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob(t)

	err := env.translateScheduler(brokenTranslator{}).RunOnce(context.Background())
	require.NoError(t, err, "one job's failure must not abort the sweep")

	job := env.job(t)
	assert.Equal(t, jobstore.StatusFailedTranslation, job.Status)
	assert.Contains(t, job.LastError, "both backends exhausted")
	assert.Empty(t, job.ArtifactPath)
}

func TestTranslateSchedulerRecordsVanishedSource(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob(t)
	env.fetcher.documents = map[string]cms.Item{}

	err := env.translateScheduler(suffixTranslator{}).RunOnce(context.Background())
	require.NoError(t, err)

	job := env.job(t)
	assert.Equal(t, jobstore.StatusFailedTranslation, job.Status)
	assert.NotEmpty(t, job.LastError)
}

func TestTranslateSchedulerRetriesFailedJob(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob(t)

	require.NoError(t, env.translateScheduler(brokenTranslator{}).RunOnce(context.Background()))
	require.Equal(t, jobstore.StatusFailedTranslation, env.job(t).Status)

	require.NoError(t, env.translateScheduler(suffixTranslator{}).RunOnce(context.Background()))

	job := env.job(t)
	assert.Equal(t, jobstore.StatusPendingUpload, job.Status)
	assert.Empty(t, job.LastError, "recovery clears the stale error")
}

func TestUploadSchedulerCompletesJob(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob(t)
	require.NoError(t, env.translateScheduler(suffixTranslator{}).RunOnce(context.Background()))

	uploads := NewUploadScheduler(env.store, env.deliverer, env.artifacts, 2, 10)
	require.NoError(t, uploads.RunOnce(context.Background()))

	job := env.job(t)
	assert.Equal(t, jobstore.StatusCompleted, job.Status)
	require.NotNil(t, job.TargetItemID)
	assert.Equal(t, int64(1), *job.TargetItemID)
	assert.Equal(t, 1, env.deliverer.calls)
}

func TestUploadSchedulerKeepsArtifactOnDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedJob(t)
	require.NoError(t, env.translateScheduler(suffixTranslator{}).RunOnce(context.Background()))

	env.deliverer.err = fmt.Errorf("cms rejected the entry")
	uploads := NewUploadScheduler(env.store, env.deliverer, env.artifacts, 2, 10)
	require.NoError(t, uploads.RunOnce(context.Background()))

	job := env.job(t)
	assert.Equal(t, jobstore.StatusFailedUpload, job.Status)
	assert.Contains(t, job.LastError, "cms rejected the entry")
	require.NotEmpty(t, job.ArtifactPath)

	_, err := env.artifacts.Load(job.ArtifactPath)
	assert.NoError(t, err, "a failed delivery keeps its artifact for the retry")

	// Fix the destination and retry without re-translating.
	env.deliverer.err = nil
	require.NoError(t, uploads.RunOnce(context.Background()))
	assert.Equal(t, jobstore.StatusCompleted, env.job(t).Status)
}

func TestSchedulersNoopOnEmptyStore(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.translateScheduler(suffixTranslator{}).RunOnce(context.Background()))
	uploads := NewUploadScheduler(env.store, env.deliverer, env.artifacts, 2, 10)
	require.NoError(t, uploads.RunOnce(context.Background()))
	assert.Zero(t, env.deliverer.calls)
}
