package service

import (
	"context"
	"errors"
	"sync"

	"github.com/contentops/cms-translator/internal/artifact"
	"github.com/contentops/cms-translator/internal/jobstore"
	"github.com/contentops/cms-translator/pkg/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// UploadScheduler is the delivery half of the lifecycle, structurally
// symmetric to TranslateScheduler. Failed deliveries keep their artifact so
// a retry never re-translates.
type UploadScheduler struct {
	store       *jobstore.Store
	deliverer   Deliverer
	artifacts   *artifact.Store
	concurrency int64
	pageSize    int
}

func NewUploadScheduler(store *jobstore.Store, deliverer Deliverer, artifacts *artifact.Store, concurrency, pageSize int) *UploadScheduler {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &UploadScheduler{
		store:       store,
		deliverer:   deliverer,
		artifacts:   artifacts,
		concurrency: int64(concurrency),
		pageSize:    pageSize,
	}
}

// RunOnce processes one page of jobs whose artifacts await delivery.
func (s *UploadScheduler) RunOnce(ctx context.Context) error {
	jobs, err := s.store.PendingUpload(ctx, s.pageSize)
	if err != nil {
		return WrapError(err, ErrStore, "load ready upload jobs")
	}
	if len(jobs) == 0 {
		return nil
	}
	sweepID := uuid.NewString()[:8]
	log.Info("upload sweep %s: %d ready jobs", sweepID, len(jobs))

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

func (s *UploadScheduler) runJob(ctx context.Context, sweepID string, job jobstore.Job) {
	err := s.store.Transition(ctx, job.ID,
		[]jobstore.Status{jobstore.StatusPendingUpload, jobstore.StatusFailedUpload},
		jobstore.StatusUploading)
	if errors.Is(err, jobstore.ErrClaimed) {
		log.Debug("upload sweep %s: job %d claimed elsewhere, skipping", sweepID, job.ID)
		return
	}
	if err != nil {
		log.Error("upload sweep %s: cannot claim job %d: %v", sweepID, job.ID, err)
		return
	}

	targetID, err := s.deliverJob(ctx, job)
	if err != nil {
		s.failJob(ctx, sweepID, job, err)
		return
	}
	err = s.store.Transition(ctx, job.ID,
		[]jobstore.Status{jobstore.StatusUploading},
		jobstore.StatusCompleted,
		jobstore.WithTargetItemID(targetID),
		jobstore.WithLastError(""))
	if err != nil && !errors.Is(err, jobstore.ErrClaimed) {
		log.Error("upload sweep %s: cannot complete job %d: %v", sweepID, job.ID, err)
		return
	}
	log.Info("upload sweep %s: job %d (%s/%s/%s) delivered as entry %d",
		sweepID, job.ID, job.ContentType, job.Slug, job.Language, targetID)
}

func (s *UploadScheduler) deliverJob(ctx context.Context, job jobstore.Job) (int64, error) {
	a, err := s.artifacts.Load(job.ArtifactPath)
	if err != nil {
		return 0, WrapError(err, ErrPersistence, "load artifact").
			WithContext("path", job.ArtifactPath)
	}
	targetID, err := s.deliverer.Deliver(ctx, job.ContentType, a.SourceItemID, job.Language, a.TranslatedDocument)
	if err != nil {
		return 0, WrapError(err, ErrDelivery, "deliver translated document").
			WithContext("slug", job.Slug).
			WithContext("language", job.Language)
	}
	return targetID, nil
}

func (s *UploadScheduler) failJob(ctx context.Context, sweepID string, job jobstore.Job, cause error) {
	log.Error("upload sweep %s: job %d (%s/%s/%s) failed: %v",
		sweepID, job.ID, job.ContentType, job.Slug, job.Language, cause)
	err := s.store.Transition(ctx, job.ID,
		[]jobstore.Status{jobstore.StatusUploading},
		jobstore.StatusFailedUpload,
		jobstore.WithLastError(cause.Error()))
	if err != nil && !errors.Is(err, jobstore.ErrClaimed) {
		log.Error("upload sweep %s: cannot record failure for job %d: %v", sweepID, job.ID, err)
	}
}
