package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"autobidder/internal/auction"
	"autobidder/internal/config"
	"autobidder/internal/domain"
	"autobidder/pkg/logger"
	"autobidder/pkg/utils"
)

// BidProcessor drives one sweep: select the near-expiration ceilings,
// authenticate once, then fetch -> parse -> decide -> act per domain,
// sequentially over the shared session. Nothing thrown by a single domain
// may abort the rest of the sweep.
type BidProcessor struct {
	bets        domain.BetRepository
	gateway     domain.AuctionGateway
	parser      *auction.Parser
	notifier    domain.EscalationNotifier
	events      domain.EventPublisher
	escalations domain.EscalationCache
	rules       domain.BiddingRuleDao
	lock        domain.SweepLock
	cfg         config.BiddingConfig
	loc         *time.Location
	log         logger.Logger
}

func NewBidProcessor(
	bets domain.BetRepository,
	gateway domain.AuctionGateway,
	parser *auction.Parser,
	notifier domain.EscalationNotifier,
	events domain.EventPublisher,
	escalations domain.EscalationCache,
	rules domain.BiddingRuleDao,
	lock domain.SweepLock,
	cfg config.BiddingConfig,
	log logger.Logger,
) (*BidProcessor, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load bidding timezone %q: %w", cfg.Timezone, err)
	}

	return &BidProcessor{
		bets:        bets,
		gateway:     gateway,
		parser:      parser,
		notifier:    notifier,
		events:      events,
		escalations: escalations,
		rules:       rules,
		lock:        lock,
		cfg:         cfg,
		loc:         loc,
		log:         log.Named("bid_processor"),
	}, nil
}

// RunSweep is the periodic entry point. It sleeps a randomized jitter delay
// first so the request cadence against the site is not a fixed pattern,
// then takes the single-flight lock for the duration of the sweep.
func (p *BidProcessor) RunSweep(ctx context.Context) {
	sweepID := utils.GenerateID("sweep")

	delay := p.jitter()
	p.log.Info("Delaying sweep start", "sweep_id", sweepID, "delay", delay)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	acquired, err := p.lock.Acquire(ctx, sweepID)
	if err != nil {
		p.log.Error("Failed to acquire sweep lock", "sweep_id", sweepID, "error", err)
		return
	}
	if !acquired {
		p.log.Warn("Another sweep is in flight, skipping this round", "sweep_id", sweepID)
		return
	}
	defer p.lock.Release(context.Background(), sweepID)

	p.process(ctx, sweepID, nil)
}

// ProcessDomain re-evaluates a single domain, used after the operator
// raised a ceiling from an escalation prompt. It shares the single-flight
// lock with periodic sweeps because both own the same session.
func (p *BidProcessor) ProcessDomain(ctx context.Context, domainID int64) error {
	sweepID := utils.GenerateID("retry")

	acquired, err := p.lock.Acquire(ctx, sweepID)
	if err != nil {
		return fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("a sweep is in flight, retry for domain %d later", domainID)
	}
	defer p.lock.Release(context.Background(), sweepID)

	p.process(ctx, sweepID, &domainID)
	return nil
}

func (p *BidProcessor) process(ctx context.Context, sweepID string, only *int64) {
	// Barrier: anything unexpected ends the sweep cleanly, the deferred
	// lock release above still runs.
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Sweep aborted by panic", "sweep_id", sweepID, "panic", r)
		}
	}()

	if !p.gateway.EnsureAuthenticated(ctx) {
		p.log.Error("Skipping all bets - unable to authenticate", "sweep_id", sweepID)
		return
	}

	bets, err := p.selectBets(ctx, only)
	if err != nil {
		p.log.Error("Failed to load bets", "sweep_id", sweepID, "error", err)
		return
	}

	mode := p.currentMode(time.Now())
	p.log.Info("Starting bet processing", "sweep_id", sweepID, "bets", len(bets), "mode", mode.String())

	for _, bet := range bets {
		select {
		case <-ctx.Done():
			p.log.Warn("Sweep cancelled", "sweep_id", sweepID)
			return
		default:
		}
		p.processBetSafe(ctx, sweepID, bet, mode)
	}

	p.log.Info("Bet processing completed", "sweep_id", sweepID)
}

// processBetSafe confines a panic to the domain that raised it so the rest
// of the sweep still runs; the barrier in process remains the backstop.
func (p *BidProcessor) processBetSafe(ctx context.Context, sweepID string, bet *domain.Bet, mode domain.Mode) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Bet processing panicked, skipping domain",
				"sweep_id", sweepID, "domain_id", bet.DomainID, "panic", r)
		}
	}()

	p.processBet(ctx, sweepID, bet, mode)
}

func (p *BidProcessor) selectBets(ctx context.Context, only *int64) ([]*domain.Bet, error) {
	if only != nil {
		bet, err := p.bets.GetBet(ctx, *only)
		if err != nil {
			return nil, err
		}
		if bet == nil {
			return nil, fmt.Errorf("no bet on record for domain %d", *only)
		}
		return []*domain.Bet{bet}, nil
	}

	return p.bets.ListExpiring(ctx, time.Now().Add(p.cfg.LookAhead))
}

func (p *BidProcessor) processBet(ctx context.Context, sweepID string, bet *domain.Bet, mode domain.Mode) {
	domainName := ""
	if bet.Domain != nil {
		domainName = bet.Domain.Name
	}

	html, err := p.gateway.FetchBidPage(ctx, bet.DomainID)
	if err != nil {
		// Local to this domain: skip and continue the sweep.
		p.log.Warn("Failed to fetch bid page", "sweep_id", sweepID,
			"domain_id", bet.DomainID, "domain", domainName, "error", err)
		return
	}

	state := p.parser.ParseBidPage(html)
	decision := Decide(state, bet.MaxBet, p.rules.Rules(), mode)

	// One log line per decision: domain, amount, outcome.
	p.log.Info("Decision",
		"sweep_id", sweepID,
		"domain_id", bet.DomainID,
		"domain", domainName,
		"action", decision.Action.String(),
		"amount", decision.Amount,
		"max_bet", bet.MaxBet,
		"reason", decision.Reason)

	p.publishEvent(ctx, bet, domainName, decision)

	switch decision.Action {
	case domain.ActionRetire:
		if err := p.bets.DeleteBet(ctx, bet.DomainID); err != nil {
			p.log.Error("Failed to retire bet", "sweep_id", sweepID, "domain_id", bet.DomainID, "error", err)
			return
		}
		p.escalations.ClearNotified(ctx, bet.DomainID)
		p.log.Info("Auction ended, bet retired", "sweep_id", sweepID, "domain_id", bet.DomainID, "domain", domainName)

	case domain.ActionPlaceBid:
		if p.gateway.SubmitBid(ctx, bet.DomainID, decision.Amount) {
			p.log.Info("Bid placed", "sweep_id", sweepID, "domain_id", bet.DomainID,
				"domain", domainName, "amount", decision.Amount)
		} else {
			// No retry this sweep; the next one re-fetches fresh state.
			p.log.Error("Failed to place bid", "sweep_id", sweepID, "domain_id", bet.DomainID,
				"domain", domainName, "amount", decision.Amount)
		}

	case domain.ActionEscalate:
		p.escalate(ctx, sweepID, bet, domainName, decision)

	case domain.ActionHold:
		// Nothing actionable this round.
	}
}

func (p *BidProcessor) escalate(ctx context.Context, sweepID string, bet *domain.Bet, domainName string, decision domain.Decision) {
	if p.notifier == nil {
		p.log.Warn("Ceiling exceeded but no notifier configured",
			"sweep_id", sweepID, "domain_id", bet.DomainID, "candidate", decision.Amount)
		return
	}

	first, err := p.escalations.MarkNotified(ctx, bet.DomainID)
	if err != nil {
		p.log.Error("Failed to record escalation", "sweep_id", sweepID, "domain_id", bet.DomainID, "error", err)
		// Fall through and notify anyway: a duplicate prompt beats a silent miss.
		first = true
	}
	if !first {
		p.log.Info("Escalation already pending for domain, not re-notifying",
			"sweep_id", sweepID, "domain_id", bet.DomainID)
		return
	}

	if err := p.notifier.NotifyExceeded(ctx, domainName, decision.Amount, bet.MaxBet, bet.DomainID); err != nil {
		p.log.Error("Failed to notify operator", "sweep_id", sweepID, "domain_id", bet.DomainID, "error", err)
	}
}

func (p *BidProcessor) publishEvent(ctx context.Context, bet *domain.Bet, domainName string, decision domain.Decision) {
	if p.events == nil {
		return
	}

	event := &domain.DecisionEvent{
		DomainID:   bet.DomainID,
		DomainName: domainName,
		Action:     decision.Action,
		Amount:     decision.Amount,
		Ceiling:    bet.MaxBet,
		Timestamp:  time.Now(),
	}
	if err := p.events.PublishDecisionEvent(ctx, event); err != nil {
		p.log.Warn("Failed to publish decision event", "domain_id", bet.DomainID, "error", err)
	}
}

// currentMode derives the decision mode from the wall clock in the
// configured local timezone.
func (p *BidProcessor) currentMode(now time.Time) domain.Mode {
	hour := now.In(p.loc).Hour()
	if hour >= p.cfg.StartHour && hour < p.cfg.EndHour {
		return domain.ModeNormal
	}
	return domain.ModeNight
}

// jitter draws a delay from [JitterMin, JitterMax], both ends inclusive.
func (p *BidProcessor) jitter() time.Duration {
	span := p.cfg.JitterMax - p.cfg.JitterMin
	if span <= 0 {
		return p.cfg.JitterMin
	}
	return p.cfg.JitterMin + time.Duration(rand.Int63n(int64(span)+1))
}
