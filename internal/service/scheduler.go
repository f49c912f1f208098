package service

import (
	"context"
	"errors"
	"sync"

	"github.com/contentops/cms-translator/internal/artifact"
	"github.com/contentops/cms-translator/internal/cms"
	"github.com/contentops/cms-translator/internal/jobstore"
	"github.com/contentops/cms-translator/pkg/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	defaultConcurrency = 3
	defaultPageSize    = 20
)

// TranslateScheduler drives ready jobs through the translation half of the
// lifecycle with bounded concurrency. One job's failure never aborts the
// sweep; only job-store errors escalate.
type TranslateScheduler struct {
	store       *jobstore.Store
	fetcher     DocumentFetcher
	docs        *DocumentTranslator
	artifacts   *artifact.Store
	concurrency int64
	pageSize    int
}

func NewTranslateScheduler(store *jobstore.Store, fetcher DocumentFetcher, docs *DocumentTranslator, artifacts *artifact.Store, concurrency, pageSize int) *TranslateScheduler {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &TranslateScheduler{
		store:       store,
		fetcher:     fetcher,
		docs:        docs,
		artifacts:   artifacts,
		concurrency: int64(concurrency),
		pageSize:    pageSize,
	}
}

// RunOnce processes one page of ready jobs and returns when all in-flight
// jobs have settled.
func (s *TranslateScheduler) RunOnce(ctx context.Context) error {
	jobs, err := s.store.PendingTranslation(ctx, s.pageSize)
	if err != nil {
		return WrapError(err, ErrStore, "load ready translation jobs")
	}
	if len(jobs) == 0 {
		return nil
	}
	sweepID := uuid.NewString()[:8]
	log.Info("translation sweep %s: %d ready jobs", sweepID, len(jobs))

	sem := semaphore.NewWeighted(s.concurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(job jobstore.Job) {
			defer wg.Done()
			defer sem.Release(1)
			s.runJob(ctx, sweepID, job)
		}(job)
	}
	wg.Wait()
	return nil
}

func (s *TranslateScheduler) runJob(ctx context.Context, sweepID string, job jobstore.Job) {
	err := s.store.Transition(ctx, job.ID,
		[]jobstore.Status{jobstore.StatusPendingTranslation, jobstore.StatusFailedTranslation},
		jobstore.StatusTranslating)
	if errors.Is(err, jobstore.ErrClaimed) {
		log.Debug("sweep %s: job %d claimed elsewhere, skipping", sweepID, job.ID)
		return
	}
	if err != nil {
		log.Error("sweep %s: cannot claim job %d: %v", sweepID, job.ID, err)
		return
	}

	if err := s.translateJob(ctx, job); err != nil {
		s.failJob(ctx, sweepID, job, err)
		return
	}
	log.Info("sweep %s: job %d (%s/%s/%s) translated",
		sweepID, job.ID, job.ContentType, job.Slug, job.Language)
}

func (s *TranslateScheduler) translateJob(ctx context.Context, job jobstore.Job) error {
	item, err := s.fetcher.FetchDocument(ctx, job.ContentType, job.Slug)
	if err != nil {
		if errors.Is(err, cms.ErrNotFound) {
			return WrapError(err, ErrFetch, "source item vanished").
				WithContext("slug", job.Slug)
		}
		return WrapError(err, ErrFetch, "fetch source document").
			WithContext("slug", job.Slug)
	}

	translated, err := s.docs.Translate(ctx, job.ContentType, item.Document, job.Language)
	if err != nil {
		return err
	}

	path, err := s.artifacts.Save(artifact.Artifact{
		SourceItemID:       item.ID,
		ItemSlug:           job.Slug,
		ContentType:        job.ContentType,
		TargetLanguage:     job.Language,
		TranslatedDocument: translated,
	})
	if err != nil {
		return WrapError(err, ErrPersistence, "persist translated document")
	}

	err = s.store.Transition(ctx, job.ID,
		[]jobstore.Status{jobstore.StatusTranslating},
		jobstore.StatusPendingUpload,
		jobstore.WithArtifactPath(path),
		jobstore.WithLastError(""))
	if errors.Is(err, jobstore.ErrClaimed) {
		// Operator reset mid-flight; the next sweep owns this job now.
		return nil
	}
	if err != nil {
		return WrapError(err, ErrStore, "record translation result")
	}
	return nil
}

func (s *TranslateScheduler) failJob(ctx context.Context, sweepID string, job jobstore.Job, cause error) {
	log.Error("sweep %s: job %d (%s/%s/%s) failed: %v",
		sweepID, job.ID, job.ContentType, job.Slug, job.Language, cause)
	err := s.store.Transition(ctx, job.ID,
		[]jobstore.Status{jobstore.StatusTranslating},
		jobstore.StatusFailedTranslation,
		jobstore.WithLastError(cause.Error()))
	if err != nil && !errors.Is(err, jobstore.ErrClaimed) {
		log.Error("sweep %s: cannot record failure for job %d: %v", sweepID, job.ID, err)
	}
}
