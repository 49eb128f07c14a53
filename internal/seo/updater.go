package seo

import (
	"context"
	"sync"

	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

// Updater enriches newly discovered domains with Ahrefs metrics. Unlike the
// bidding sweep this job owns no shared session, so it may fan out, bounded
// by the configured concurrency limit.
type Updater struct {
	client      *Client
	domains     domain.DomainRepository
	metrics     domain.SeoMetricsRepository
	concurrency int
	log         logger.Logger
}

func NewUpdater(client *Client, domains domain.DomainRepository, metrics domain.SeoMetricsRepository,
	concurrency int, log logger.Logger) *Updater {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Updater{
		client:      client,
		domains:     domains,
		metrics:     metrics,
		concurrency: concurrency,
		log:         log.Named("seo_updater"),
	}
}

// UpdateMissing fetches metrics for every domain that has none yet and
// bulk-saves the results. A failed domain is logged and skipped; the rest
// of the batch still lands.
func (u *Updater) UpdateMissing(ctx context.Context) error {
	domains, err := u.domains.ListWithoutSeoMetrics(ctx)
	if err != nil {
		return err
	}

	u.log.Info("Updating SEO metrics", "domains", len(domains))
	if len(domains) == 0 {
		return nil
	}

	if info, err := u.client.SubscriptionInfo(ctx); err != nil {
		u.log.Warn("Could not read API balance", "error", err)
	} else {
		u.log.Info("API balance before update", "subscription", info)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		collected []*domain.SeoMetrics
	)
	sem := make(chan struct{}, u.concurrency)

	for _, d := range domains {
		wg.Add(1)
		go func(d *domain.Domain) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			u.log.Info("Getting data for domain", "domain", d.Name)

			m, err := u.client.FetchMetrics(ctx, d.Name)
			if err != nil {
				u.log.Error("Error fetching data for domain", "domain", d.Name, "error", err)
				return
			}
			m.DomainID = d.ID

			mu.Lock()
			collected = append(collected, m)
			mu.Unlock()
		}(d)
	}

	wg.Wait()

	if err := u.metrics.SaveMetrics(ctx, collected); err != nil {
		return err
	}

	u.log.Info("SEO metrics update completed", "saved", len(collected))
	return nil
}
