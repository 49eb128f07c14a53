package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"autobidder/internal/auction"
	"autobidder/internal/config"
	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

const endedPage = `<html><div class="alert alert-danger alert-dismissable">Час прийому заявок минув</div></html>`

func rangePage(min, max int64) string {
	return fmt.Sprintf(`<html><p id="modal_backorder_original_info">від %d до %d</p></html>`, min, max)
}

type fakeBetRepo struct {
	bets    map[int64]*domain.Bet
	deleted []int64
}

func (r *fakeBetRepo) GetBet(_ context.Context, domainID int64) (*domain.Bet, error) {
	return r.bets[domainID], nil
}

func (r *fakeBetRepo) UpsertBet(_ context.Context, bet *domain.Bet) error {
	r.bets[bet.DomainID] = bet
	return nil
}

func (r *fakeBetRepo) UpdateMaxBet(_ context.Context, domainID, maxBet int64) error {
	if bet, ok := r.bets[domainID]; ok {
		bet.MaxBet = maxBet
	}
	return nil
}

func (r *fakeBetRepo) DeleteBet(_ context.Context, domainID int64) error {
	r.deleted = append(r.deleted, domainID)
	delete(r.bets, domainID)
	return nil
}

func (r *fakeBetRepo) ListExpiring(_ context.Context, _ time.Time) ([]*domain.Bet, error) {
	var out []*domain.Bet
	for _, bet := range r.bets {
		out = append(out, bet)
	}
	return out, nil
}

func (r *fakeBetRepo) ListAll(ctx context.Context) ([]*domain.Bet, error) {
	return r.ListExpiring(ctx, time.Time{})
}

type submission struct {
	domainID int64
	amount   int64
}

type fakeGateway struct {
	authOK    bool
	pages     map[int64]string
	submitted []submission
	fetched   []int64
}

func (g *fakeGateway) EnsureAuthenticated(_ context.Context) bool { return g.authOK }

func (g *fakeGateway) FetchBidPage(_ context.Context, domainID int64) (string, error) {
	g.fetched = append(g.fetched, domainID)
	page, ok := g.pages[domainID]
	if !ok {
		return "", fmt.Errorf("no page for domain %d", domainID)
	}
	return page, nil
}

func (g *fakeGateway) SubmitBid(_ context.Context, domainID, amount int64) bool {
	g.submitted = append(g.submitted, submission{domainID, amount})
	return true
}

type notifyCall struct {
	domainName   string
	candidateBid int64
	maxBet       int64
	domainID     int64
}

type fakeNotifier struct {
	calls []notifyCall
}

func (n *fakeNotifier) NotifyExceeded(_ context.Context, domainName string, candidateBid, maxBet, domainID int64) error {
	n.calls = append(n.calls, notifyCall{domainName, candidateBid, maxBet, domainID})
	return nil
}

type fakeEscalationCache struct {
	marked  map[int64]bool
	cleared []int64
}

func (c *fakeEscalationCache) MarkNotified(_ context.Context, domainID int64) (bool, error) {
	if c.marked[domainID] {
		return false, nil
	}
	c.marked[domainID] = true
	return true, nil
}

func (c *fakeEscalationCache) ClearNotified(_ context.Context, domainID int64) error {
	delete(c.marked, domainID)
	c.cleared = append(c.cleared, domainID)
	return nil
}

type fakeSweepLock struct {
	busy     bool
	acquired int
}

func (l *fakeSweepLock) Acquire(_ context.Context, _ string) (bool, error) {
	if l.busy {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeSweepLock) Release(_ context.Context, _ string) error { return nil }

type fakeRuleDao struct{}

func (fakeRuleDao) LoadRules(_ context.Context) error { return nil }
func (fakeRuleDao) Rules() *domain.BiddingRules       { return testRules() }

type fakeEvents struct {
	events []*domain.DecisionEvent
}

func (e *fakeEvents) PublishDecisionEvent(_ context.Context, event *domain.DecisionEvent) error {
	e.events = append(e.events, event)
	return nil
}

type processorFixture struct {
	repo     *fakeBetRepo
	gateway  *fakeGateway
	notifier *fakeNotifier
	cache    *fakeEscalationCache
	lock     *fakeSweepLock
	events   *fakeEvents
}

func dayConfig() config.BiddingConfig {
	return config.BiddingConfig{
		StartHour: 0,
		EndHour:   24,
		Timezone:  "UTC",
		LookAhead: time.Hour,
	}
}

func nightConfig() config.BiddingConfig {
	cfg := dayConfig()
	cfg.StartHour = 0
	cfg.EndHour = 0
	return cfg
}

func newFixture(t *testing.T, cfg config.BiddingConfig, bets ...*domain.Bet) (*BidProcessor, *processorFixture) {
	t.Helper()

	f := &processorFixture{
		repo:     &fakeBetRepo{bets: make(map[int64]*domain.Bet)},
		gateway:  &fakeGateway{authOK: true, pages: make(map[int64]string)},
		notifier: &fakeNotifier{},
		cache:    &fakeEscalationCache{marked: make(map[int64]bool)},
		lock:     &fakeSweepLock{},
		events:   &fakeEvents{},
	}
	for _, bet := range bets {
		f.repo.bets[bet.DomainID] = bet
	}

	log := logger.New()
	p, err := NewBidProcessor(f.repo, f.gateway, auction.NewParser(log), f.notifier,
		f.events, f.cache, fakeRuleDao{}, f.lock, cfg, log)
	if err != nil {
		t.Fatalf("failed to build processor: %v", err)
	}
	return p, f
}

func testBet(domainID, maxBet int64) *domain.Bet {
	return &domain.Bet{
		DomainID: domainID,
		MaxBet:   maxBet,
		Domain:   &domain.Domain{ID: domainID, Name: fmt.Sprintf("domain-%d.com.ua", domainID)},
	}
}

func TestProcessDomainRetiresEndedAuction(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500))
	f.gateway.pages[1] = endedPage

	if err := p.ProcessDomain(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.repo.deleted) != 1 || f.repo.deleted[0] != 1 {
		t.Fatalf("expected bet 1 deleted, got %v", f.repo.deleted)
	}
	if len(f.cache.cleared) != 1 {
		t.Fatalf("expected escalation mark cleared, got %v", f.cache.cleared)
	}
	if len(f.gateway.submitted) != 0 {
		t.Fatalf("an ended auction must not receive bids")
	}
}

func TestProcessDomainPlacesBidWithinCeiling(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500))
	f.gateway.pages[1] = rangePage(900, 1200)

	if err := p.ProcessDomain(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.gateway.submitted) != 1 {
		t.Fatalf("expected one bid submission, got %d", len(f.gateway.submitted))
	}
	if got := f.gateway.submitted[0]; got.domainID != 1 || got.amount != 900 {
		t.Fatalf("expected bid of 900 on domain 1, got %+v", got)
	}
	if len(f.notifier.calls) != 0 {
		t.Fatalf("a within-ceiling bid must not escalate")
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected one decision event, got %d", len(f.events.events))
	}
	if e := f.events.events[0]; e.Action != domain.ActionPlaceBid || e.Amount != 900 {
		t.Fatalf("unexpected decision event %+v", e)
	}
}

func TestProcessDomainEscalatesOverCeiling(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 500))
	f.gateway.pages[1] = rangePage(900, 1200)

	if err := p.ProcessDomain(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.gateway.submitted) != 0 {
		t.Fatalf("an over-ceiling candidate must not be bid")
	}
	if len(f.notifier.calls) != 1 {
		t.Fatalf("expected one escalation, got %d", len(f.notifier.calls))
	}
	call := f.notifier.calls[0]
	if call.candidateBid != 900 || call.maxBet != 500 || call.domainID != 1 {
		t.Fatalf("unexpected escalation %+v", call)
	}
	if call.domainName != "domain-1.com.ua" {
		t.Fatalf("escalation must carry the domain name, got %q", call.domainName)
	}
}

func TestProcessDomainEscalationDeduplicates(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 500))
	f.gateway.pages[1] = rangePage(900, 1200)

	for i := 0; i < 3; i++ {
		if err := p.ProcessDomain(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error on pass %d: %v", i, err)
		}
	}

	if len(f.notifier.calls) != 1 {
		t.Fatalf("repeated sweeps must not re-notify, got %d prompts", len(f.notifier.calls))
	}
}

func TestProcessDomainBusyLock(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500))
	f.lock.busy = true

	if err := p.ProcessDomain(context.Background(), 1); err == nil {
		t.Fatalf("expected an error when the sweep lock is held")
	}
	if len(f.gateway.fetched) != 0 {
		t.Fatalf("a busy lock must prevent any site traffic")
	}
}

func TestProcessSkipsEverythingWhenUnauthenticated(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500))
	f.gateway.authOK = false
	f.gateway.pages[1] = rangePage(900, 1200)

	if err := p.ProcessDomain(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.gateway.fetched) != 0 || len(f.gateway.submitted) != 0 {
		t.Fatalf("no pages may be touched without authentication")
	}
}

func TestProcessDomainNightModeHoldsAboveFloor(t *testing.T) {
	p, f := newFixture(t, nightConfig(), testBet(1, 5000))
	f.gateway.pages[1] = rangePage(1500, 2000)

	if err := p.ProcessDomain(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.gateway.submitted) != 0 {
		t.Fatalf("night mode must not raise existing bids")
	}
	if len(f.notifier.calls) != 0 {
		t.Fatalf("a night hold must not escalate")
	}
}

func TestRunSweepProcessesAllExpiringBets(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500), testBet(2, 1500))
	f.gateway.pages[1] = rangePage(900, 1200)
	f.gateway.pages[2] = endedPage

	p.RunSweep(context.Background())

	if len(f.gateway.fetched) != 2 {
		t.Fatalf("expected both bets fetched, got %v", f.gateway.fetched)
	}
	if len(f.gateway.submitted) != 1 {
		t.Fatalf("expected one bid placed, got %d", len(f.gateway.submitted))
	}
	if len(f.repo.deleted) != 1 || f.repo.deleted[0] != 2 {
		t.Fatalf("expected the ended bet retired, got %v", f.repo.deleted)
	}
}

func TestRunSweepSkipsWhenLockBusy(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500))
	f.lock.busy = true

	p.RunSweep(context.Background())

	if len(f.gateway.fetched) != 0 {
		t.Fatalf("a concurrent sweep must be skipped entirely")
	}
}

type panickingGateway struct {
	*fakeGateway
	panicOn int64
}

func (g *panickingGateway) FetchBidPage(ctx context.Context, domainID int64) (string, error) {
	if domainID == g.panicOn {
		panic(fmt.Sprintf("unexpected markup for domain %d", domainID))
	}
	return g.fakeGateway.FetchBidPage(ctx, domainID)
}

func TestRunSweepPanicOnOneDomainDoesNotAbortSweep(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500), testBet(2, 1500))
	f.gateway.pages[2] = rangePage(900, 1200)

	gw := &panickingGateway{fakeGateway: f.gateway, panicOn: 1}
	p.gateway = gw

	p.RunSweep(context.Background())

	if len(f.gateway.submitted) != 1 || f.gateway.submitted[0].domainID != 2 {
		t.Fatalf("a panic on one domain must not starve the rest of the sweep, submitted=%+v",
			f.gateway.submitted)
	}
}

func TestJitterStaysWithinConfiguredBounds(t *testing.T) {
	cfg := dayConfig()
	cfg.JitterMin = 60 * time.Millisecond
	cfg.JitterMax = 600 * time.Millisecond

	p, _ := newFixture(t, cfg)

	for i := 0; i < 1000; i++ {
		d := p.jitter()
		if d < cfg.JitterMin || d > cfg.JitterMax {
			t.Fatalf("jitter %v outside [%v, %v]", d, cfg.JitterMin, cfg.JitterMax)
		}
	}
}

func TestProcessDomainFetchFailureSkipsDomainOnly(t *testing.T) {
	p, f := newFixture(t, dayConfig(), testBet(1, 1500), testBet(2, 1500))
	// Domain 1 has no page, so its fetch fails; domain 2 still processes.
	f.gateway.pages[2] = rangePage(900, 1200)

	p.RunSweep(context.Background())

	if len(f.gateway.submitted) != 1 || f.gateway.submitted[0].domainID != 2 {
		t.Fatalf("a fetch failure must not abort the sweep, got %+v", f.gateway.submitted)
	}
}
