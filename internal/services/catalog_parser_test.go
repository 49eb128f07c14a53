package services

import (
	"context"
	"fmt"
	"testing"

	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

func listingRow(id int64, name, date string) string {
	return fmt.Sprintf(`<tr style="cursor: pointer;" data-id="%d">
		<td><div class="fqdn">%s</div></td>
		<td class="text-center">-</td>
		<td class="text-center">%s</td>
	</tr>`, id, name, date)
}

func listingPage(pagination string, rows ...string) string {
	body := ""
	for _, r := range rows {
		body += r
	}
	return fmt.Sprintf(`<html><body><table>%s</table>%s</body></html>`, body, pagination)
}

type fakeListingFetcher struct {
	authOK bool
	pages  map[int]string
	days   []int64
}

func (f *fakeListingFetcher) EnsureAuthenticated(_ context.Context) bool { return f.authOK }

func (f *fakeListingFetcher) FetchListingPage(_ context.Context, day int64, page int) (string, error) {
	f.days = append(f.days, day)
	html, ok := f.pages[page]
	if !ok {
		return "", fmt.Errorf("no listing page %d", page)
	}
	return html, nil
}

type fakeDomainRepo struct {
	upserted []*domain.Domain
}

func (r *fakeDomainRepo) UpsertDomain(_ context.Context, d *domain.Domain) error {
	r.upserted = append(r.upserted, d)
	return nil
}

func (r *fakeDomainRepo) GetDomain(_ context.Context, domainID int64) (*domain.Domain, error) {
	for _, d := range r.upserted {
		if d.ID == domainID {
			return d, nil
		}
	}
	return nil, nil
}

func (r *fakeDomainRepo) ListWithoutSeoMetrics(_ context.Context) ([]*domain.Domain, error) {
	return r.upserted, nil
}

type catalogFixture struct {
	fetcher *fakeListingFetcher
	repo    *fakeDomainRepo
	lock    *fakeSweepLock
}

func newCatalogFixture(t *testing.T, pages map[int]string) (*CatalogParser, *catalogFixture) {
	t.Helper()

	f := &catalogFixture{
		fetcher: &fakeListingFetcher{authOK: true, pages: pages},
		repo:    &fakeDomainRepo{},
		lock:    &fakeSweepLock{},
	}

	cfg := dayConfig()
	cfg.CatalogDaysOut = 3

	c, err := NewCatalogParser(f.fetcher, f.repo, f.lock, cfg, logger.New())
	if err != nil {
		t.Fatalf("failed to build catalog parser: %v", err)
	}
	return c, f
}

func TestCatalogRunStoresDomainsAcrossPages(t *testing.T) {
	pagination := `<ul class="pagination"><li><a>1</a></li><li><a>2</a></li></ul>`
	pages := map[int]string{
		0: listingPage(pagination,
			listingRow(101, "first.com.ua", "02.09.2026 14:00:00"),
			listingRow(102, "second.com.ua", "≈ 02.09.2026 15:30:00")),
		1: listingPage(pagination, listingRow(103, "third.com.ua", "03.09.2026 09:00:00")),
		2: listingPage(pagination, listingRow(104, "fourth.com.ua", "03.09.2026 10:00:00")),
	}

	c, f := newCatalogFixture(t, pages)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.repo.upserted) != 4 {
		t.Fatalf("expected 4 domains stored, got %d", len(f.repo.upserted))
	}

	byID := make(map[int64]*domain.Domain)
	for _, d := range f.repo.upserted {
		byID[d.ID] = d
	}

	second, ok := byID[102]
	if !ok {
		t.Fatalf("domain 102 missing from %v", f.repo.upserted)
	}
	if second.Name != "second.com.ua" {
		t.Fatalf("unexpected name %q", second.Name)
	}
	// The "≈" approximation prefix must not break date parsing.
	if second.ExpirationDate.Hour() != 15 || second.ExpirationDate.Minute() != 30 {
		t.Fatalf("unexpected expiration %v", second.ExpirationDate)
	}
}

func TestCatalogRunSkipsBrokenRows(t *testing.T) {
	pages := map[int]string{
		0: listingPage("",
			listingRow(101, "good.com.ua", "02.09.2026 14:00:00"),
			listingRow(102, "no-date.com.ua", "скоро"),
			`<tr style="cursor: pointer;"><td><div class="fqdn">no-id.com.ua</div></td></tr>`),
	}

	c, f := newCatalogFixture(t, pages)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.repo.upserted) != 1 {
		t.Fatalf("expected only the complete row stored, got %d", len(f.repo.upserted))
	}
	if f.repo.upserted[0].ID != 101 {
		t.Fatalf("unexpected domain %+v", f.repo.upserted[0])
	}
}

func TestCatalogRunFailedPageDoesNotAbort(t *testing.T) {
	pagination := `<ul class="pagination"><li><a>1</a></li><li><a>2</a></li></ul>`
	pages := map[int]string{
		0: listingPage(pagination, listingRow(101, "first.com.ua", "02.09.2026 14:00:00")),
		// Page 1 is missing, page 2 still crawls.
		2: listingPage(pagination, listingRow(104, "fourth.com.ua", "03.09.2026 10:00:00")),
	}

	c, f := newCatalogFixture(t, pages)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.repo.upserted) != 2 {
		t.Fatalf("expected 2 domains despite the failed page, got %d", len(f.repo.upserted))
	}
}

func TestCatalogRunRequiresAuthentication(t *testing.T) {
	c, f := newCatalogFixture(t, nil)
	f.fetcher.authOK = false

	if err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected an error when authentication fails")
	}
	if len(f.fetcher.days) != 0 {
		t.Fatalf("no listing pages may be fetched without authentication")
	}
}

func TestCatalogRunSkipsWhenSweepInFlight(t *testing.T) {
	pages := map[int]string{
		0: listingPage("", listingRow(101, "first.com.ua", "02.09.2026 14:00:00")),
	}

	c, f := newCatalogFixture(t, pages)
	f.lock.busy = true

	if err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected an error while a sweep holds the lock")
	}
	if len(f.fetcher.days) != 0 {
		t.Fatalf("the shared session must not be touched while a sweep runs")
	}
	if len(f.repo.upserted) != 0 {
		t.Fatalf("no domains may be stored from a skipped crawl")
	}
}
