package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentops/cms-translator/internal/artifact"
	"github.com/contentops/cms-translator/internal/cms"
	"github.com/contentops/cms-translator/internal/config"
	"github.com/contentops/cms-translator/internal/httpapi"
	"github.com/contentops/cms-translator/internal/jobstore"
	"github.com/contentops/cms-translator/internal/schema"
	"github.com/contentops/cms-translator/internal/service"
	"github.com/contentops/cms-translator/internal/tmcache"
	"github.com/contentops/cms-translator/internal/translator"
	"github.com/contentops/cms-translator/pkg/log"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))

	types := schema.Default()
	if cfg.Pipeline.SchemaFile != "" {
		types, err = schema.Load(cfg.Pipeline.SchemaFile)
		if err != nil {
			log.Fatal("failed to load schema file: %v", err)
		}
	}

	store, err := jobstore.NewStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("failed to open job store: %v", err)
	}
	defer store.Close()

	caches := tmcache.NewSet(cfg.Storage.CacheFile)
	if err := caches.Load(); err != nil {
		log.Fatal("failed to load translation cache: %v", err)
	}

	cmsClient, err := cms.NewClient(cms.Config{
		BaseURL: cfg.CMS.BaseURL,
		Token:   cfg.CMS.Token,
		Timeout: cfg.CMS.Timeout,
	})
	if err != nil {
		log.Fatal("failed to build cms client: %v", err)
	}

	primary, err := translator.NewGeminiBackend(translator.BackendConfig{
		APIURL:  cfg.LLM.APIURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.PrimaryModel,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		log.Fatal("failed to build primary backend: %v", err)
	}
	fallback, err := translator.NewGeminiBackend(translator.BackendConfig{
		APIURL:  cfg.LLM.APIURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.FallbackModel,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		log.Fatal("failed to build fallback backend: %v", err)
	}
	batch := translator.NewBatch(primary, fallback, translator.WithBatchSize(cfg.LLM.BatchSize))

	docs := service.NewDocumentTranslator(types, caches, batch)
	artifacts := artifact.NewStore(cfg.Storage.OutputDir)
	translate := service.NewTranslateScheduler(store, cmsClient, docs, artifacts,
		cfg.Pipeline.Concurrency, cfg.Pipeline.PageSize)
	upload := service.NewUploadScheduler(store, cmsClient, artifacts,
		cfg.Pipeline.Concurrency, cfg.Pipeline.PageSize)
	svc := service.NewTransService(cfg, store, caches, cmsClient, translate, upload, cron.New())

	api := httpapi.NewServer(store)
	go func() {
		log.Info("status api listening on %s", cfg.HTTPAddr)
		if err := api.ListenAndServe(cfg.HTTPAddr); err != nil {
			log.Error("status api stopped: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Schedule(ctx); err != nil {
		log.Fatal("failed to schedule sweeps: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	cancel()
	svc.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error("status api shutdown: %v", err)
	}
}
