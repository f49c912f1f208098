package service

import (
	"context"

	"github.com/contentops/cms-translator/internal/config"
	"github.com/contentops/cms-translator/internal/jobstore"
	"github.com/contentops/cms-translator/internal/tmcache"
	"github.com/contentops/cms-translator/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// TransService is the long-running translation service: it periodically
// re-scans the CMS for new source items, initializes jobs for them, and
// drives both scheduler halves. Overlapping sweeps collapse into one.
type TransService struct {
	cfg       *config.Config
	store     *jobstore.Store
	caches    *tmcache.Set
	fetcher   DocumentFetcher
	translate *TranslateScheduler
	upload    *UploadScheduler
	cron      *cron.Cron
	sf        singleflight.Group
}

func NewTransService(
	cfg *config.Config,
	store *jobstore.Store,
	caches *tmcache.Set,
	fetcher DocumentFetcher,
	translate *TranslateScheduler,
	upload *UploadScheduler,
	c *cron.Cron,
) *TransService {
	return &TransService{
		cfg:       cfg,
		store:     store,
		caches:    caches,
		fetcher:   fetcher,
		translate: translate,
		upload:    upload,
		cron:      c,
	}
}

// Schedule runs one sweep immediately, then keeps sweeping on the
// configured cron spec until ctx is cancelled.
func (s *TransService) Schedule(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Pipeline.SweepCron, func() {
		s.Sweep(ctx)
	}); err != nil {
		return WrapError(err, ErrConfig, "invalid sweep cron spec").
			WithContext("spec", s.cfg.Pipeline.SweepCron)
	}
	if _, err := s.cron.AddFunc("@every 10m", func() {
		if err := s.caches.Flush(); err != nil {
			log.Error("periodic cache flush failed: %v", err)
		}
	}); err != nil {
		return WrapError(err, ErrConfig, "register cache flush")
	}

	s.Sweep(ctx)
	s.cron.Start()
	return nil
}

// Sweep is one full pass: discover items, initialize jobs, translate,
// deliver, flush the cache. Concurrent calls share a single execution.
func (s *TransService) Sweep(ctx context.Context) {
	_, _, _ = s.sf.Do("sweep", func() (any, error) {
		s.initializeJobs(ctx)

		if err := s.translate.RunOnce(ctx); err != nil {
			log.Error("translation sweep failed: %v", err)
		}
		if err := s.upload.RunOnce(ctx); err != nil {
			log.Error("upload sweep failed: %v", err)
		}
		if err := s.caches.Flush(); err != nil {
			log.Error("cache flush failed: %v", err)
		}
		return nil, nil
	})
}

// initializeJobs creates pending rows for every (item × language) pair not
// seen before. Listing failures skip the content type for this sweep; the
// existing backlog still gets processed.
func (s *TransService) initializeJobs(ctx context.Context) {
	for _, contentType := range s.cfg.Pipeline.ContentTypes {
		refs, err := s.fetcher.ListItems(ctx, contentType)
		if err != nil {
			log.Error("list %s items: %v", contentType, err)
			continue
		}
		specs := make([]jobstore.NewJobSpec, 0, len(refs))
		for _, ref := range refs {
			specs = append(specs, jobstore.NewJobSpec{Slug: ref.Slug, SourceItemID: ref.ID})
		}
		inserted, err := s.store.InitializeJobs(ctx, contentType, specs, s.cfg.Pipeline.Languages)
		if err != nil {
			log.Error("initialize %s jobs: %v", contentType, err)
			continue
		}
		if inserted > 0 {
			log.Info("initialized %d new %s jobs", inserted, contentType)
		}
	}
}

// Stop halts scheduling, waits for running cron entries, and flushes the
// cache one last time. In-flight jobs finish their current step.
func (s *TransService) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	if err := s.caches.Flush(); err != nil {
		log.Error("final cache flush failed: %v", err)
	}
}
