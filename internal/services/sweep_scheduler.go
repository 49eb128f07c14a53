package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"autobidder/internal/config"
	"autobidder/internal/seo"
	"autobidder/pkg/logger"
)

// SweepScheduler owns the cron entries: the periodic bidding sweep plus the
// daily catalog refresh and SEO enrichment jobs. The sweep's anti-pattern
// jitter lives inside BidProcessor.RunSweep, not here.
type SweepScheduler struct {
	cron      *cron.Cron
	processor *BidProcessor
	catalog   *CatalogParser
	seo       *seo.Updater
	cfg       config.BiddingConfig
	log       logger.Logger
}

func NewSweepScheduler(processor *BidProcessor, catalog *CatalogParser, seoUpdater *seo.Updater,
	cfg config.BiddingConfig, log logger.Logger) *SweepScheduler {
	return &SweepScheduler{
		cron:      cron.New(),
		processor: processor,
		catalog:   catalog,
		seo:       seoUpdater,
		cfg:       cfg,
		log:       log.Named("scheduler"),
	}
}

func (s *SweepScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting sweep scheduler", "sweep_interval", s.cfg.SweepInterval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.SweepInterval), func() {
		s.processor.RunSweep(ctx)
	})
	if err != nil {
		return err
	}

	// Refresh the domain catalog each morning, then enrich the new rows.
	_, err = s.cron.AddFunc("0 7 * * *", func() {
		if err := s.catalog.Run(ctx); err != nil {
			s.log.Error("Catalog refresh failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc("30 7 * * *", func() {
		if err := s.seo.UpdateMissing(ctx); err != nil {
			s.log.Error("SEO enrichment failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *SweepScheduler) Stop() error {
	s.log.Info("Stopping sweep scheduler")
	s.cron.Stop()
	return nil
}
