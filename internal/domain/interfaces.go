package domain

import (
	"context"
	"time"
)

// Repository interfaces
type DomainRepository interface {
	UpsertDomain(ctx context.Context, d *Domain) error
	GetDomain(ctx context.Context, domainID int64) (*Domain, error)
	ListWithoutSeoMetrics(ctx context.Context) ([]*Domain, error)
}

type BetRepository interface {
	GetBet(ctx context.Context, domainID int64) (*Bet, error)
	UpsertBet(ctx context.Context, bet *Bet) error
	UpdateMaxBet(ctx context.Context, domainID, maxBet int64) error
	DeleteBet(ctx context.Context, domainID int64) error
	// ListExpiring returns bets whose domain expires before the given
	// instant, joined with their domains. The filter runs against the
	// authoritative Domain.ExpirationDate, not the denormalized copy.
	ListExpiring(ctx context.Context, before time.Time) ([]*Bet, error)
	ListAll(ctx context.Context) ([]*Bet, error)
}

type SeoMetricsRepository interface {
	SaveMetrics(ctx context.Context, metrics []*SeoMetrics) error
}

// AuctionGateway is the authenticated surface of the auction site. The
// session is shared sequentially within a sweep, never concurrently.
type AuctionGateway interface {
	// EnsureAuthenticated probes the session and logs in if the site
	// reports it anonymous. It never fails loudly: false means skip.
	EnsureAuthenticated(ctx context.Context) bool
	FetchBidPage(ctx context.Context, domainID int64) (string, error)
	SubmitBid(ctx context.Context, domainID, amount int64) bool
}

// ListingFetcher is the catalog-facing surface of the auction site.
type ListingFetcher interface {
	EnsureAuthenticated(ctx context.Context) bool
	FetchListingPage(ctx context.Context, day int64, page int) (string, error)
}

// EscalationNotifier hands a ceiling-exceeding situation to the operator.
// Fire-and-forget: the operator's answer comes back asynchronously through
// the ceiling store and a single-domain reprocess.
type EscalationNotifier interface {
	NotifyExceeded(ctx context.Context, domainName string, candidateBid, maxBet, domainID int64) error
}

// Event interfaces
type EventPublisher interface {
	PublishDecisionEvent(ctx context.Context, event *DecisionEvent) error
}

type EventSubscriber interface {
	SubscribeToDecisionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *DecisionEvent) error

// EscalationCache deduplicates operator prompts: one per domain per TTL
// window, re-armed when the operator raises the ceiling.
type EscalationCache interface {
	MarkNotified(ctx context.Context, domainID int64) (bool, error)
	ClearNotified(ctx context.Context, domainID int64) error
}

// SweepLock is the single-flight guard required at the scheduling layer:
// a periodic sweep and an escalation retry must not share the session.
type SweepLock interface {
	Acquire(ctx context.Context, ownerID string) (bool, error)
	Release(ctx context.Context, ownerID string) error
}

// BiddingRuleDao loads shared bidding tunables, seeding defaults on first use.
type BiddingRuleDao interface {
	LoadRules(ctx context.Context) error
	Rules() *BiddingRules
}
