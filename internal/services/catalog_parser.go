package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"autobidder/internal/config"
	"autobidder/internal/domain"
	"autobidder/pkg/logger"
	"autobidder/pkg/utils"
)

const listingDateLayout = "02.01.2006 15:04:05"

// CatalogParser crawls the expiring-domain listings and keeps the domain
// catalog current. It shares the authenticated session with the bidding
// engine, so a crawl takes the same single-flight lock as a sweep.
type CatalogParser struct {
	fetcher domain.ListingFetcher
	domains domain.DomainRepository
	lock    domain.SweepLock
	daysOut int
	loc     *time.Location
	log     logger.Logger
}

func NewCatalogParser(fetcher domain.ListingFetcher, domains domain.DomainRepository,
	lock domain.SweepLock, cfg config.BiddingConfig, log logger.Logger) (*CatalogParser, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load bidding timezone %q: %w", cfg.Timezone, err)
	}

	return &CatalogParser{
		fetcher: fetcher,
		domains: domains,
		lock:    lock,
		daysOut: cfg.CatalogDaysOut,
		loc:     loc,
		log:     log.Named("catalog_parser"),
	}, nil
}

func (c *CatalogParser) Run(ctx context.Context) error {
	crawlID := utils.GenerateID("catalog")

	acquired, err := c.lock.Acquire(ctx, crawlID)
	if err != nil {
		return fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("a sweep is in flight, skipping catalog crawl")
	}
	defer c.lock.Release(context.Background(), crawlID)

	if !c.fetcher.EnsureAuthenticated(ctx) {
		return fmt.Errorf("authorization failed")
	}

	// The listing endpoint takes the last visible day as a unix timestamp
	// at midnight, local time.
	day := time.Now().In(c.loc).AddDate(0, 0, c.daysOut)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc)

	html, err := c.fetcher.FetchListingPage(ctx, day.Unix(), 0)
	if err != nil {
		return fmt.Errorf("fetch first listing page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse first listing page: %w", err)
	}

	totalPages := extractTotalPages(doc)
	c.log.Info("Crawling listings", "total_pages", totalPages, "day", day)

	// First page is already in hand; no extra request for it.
	c.storeDomainsFromPage(ctx, doc)

	for page := 1; page <= totalPages; page++ {
		c.log.Info("Processing listing page", "page", page)

		html, err := c.fetcher.FetchListingPage(ctx, day.Unix(), page)
		if err != nil {
			c.log.Warn("Failed to fetch listing page", "page", page, "error", err)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			c.log.Warn("Failed to parse listing page", "page", page, "error", err)
			continue
		}

		c.storeDomainsFromPage(ctx, doc)
	}

	return nil
}

// extractTotalPages reads the highest page number out of the pagination bar.
func extractTotalPages(doc *goquery.Document) int {
	total := 1
	doc.Find("ul.pagination a").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > total {
			total = n
		}
	})
	return total
}

func (c *CatalogParser) storeDomainsFromPage(ctx context.Context, doc *goquery.Document) {
	doc.Find(`tr[style="cursor: pointer;"]`).Each(func(_ int, row *goquery.Selection) {
		d, ok := c.parseDomainRow(row)
		if !ok {
			return
		}

		if err := c.domains.UpsertDomain(ctx, d); err != nil {
			c.log.Error("Failed to store domain", "domain", d.Name, "error", err)
			return
		}
		c.log.Info("Processed domain", "domain", d.Name, "domain_id", d.ID)
	})
}

func (c *CatalogParser) parseDomainRow(row *goquery.Selection) (*domain.Domain, bool) {
	idAttr, _ := row.Attr("data-id")
	id, err := strconv.ParseInt(strings.TrimSpace(idAttr), 10, 64)
	if err != nil {
		c.log.Warn("Skipping row without a usable id", "data_id", idAttr)
		return nil, false
	}

	name := strings.TrimSpace(row.Find("div.fqdn").First().Text())

	var expiration time.Time
	if cell := row.Find("td.text-center").Eq(1); cell.Length() > 0 {
		expiration = c.parseListingDate(cell.Text())
	}

	if name == "" || expiration.IsZero() {
		c.log.Warn("Skipping incomplete domain data", "domain_id", id, "domain", name)
		return nil, false
	}

	return &domain.Domain{ID: id, Name: name, ExpirationDate: expiration}, true
}

func (c *CatalogParser) parseListingDate(raw string) time.Time {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "≈"))

	t, err := time.ParseInLocation(listingDateLayout, raw, c.loc)
	if err != nil {
		c.log.Warn("Skipping invalid date format", "raw", raw)
		return time.Time{}
	}
	return t
}
