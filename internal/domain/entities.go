package domain

import (
	"time"
)

// Domain is one expiring domain discovered on the auction site. The site's
// backorder id is the primary key everywhere, including bid-page URLs.
type Domain struct {
	ID             int64
	Name           string
	ExpirationDate time.Time
}

// Bet is the operator's ceiling for a domain: the maximum amount the engine
// may bid without asking. ExpirationDate is a denormalized copy; expiration
// queries always go through Domain.ExpirationDate.
type Bet struct {
	DomainID       int64
	MaxBet         int64
	ExpirationDate time.Time
	CreatedAt      time.Time
	Domain         *Domain
}

// AuctionState is what one fetch of a bid page yields. It is never cached:
// the auction is live, so every decision re-reads the page.
// Nil CurrentBid means the input field was empty or missing (no bid yet),
// nil MinNextBid means the page gave no range guidance.
type AuctionState struct {
	CurrentBid *int64
	MinNextBid *int64
	Ended      bool
}

type Mode int

const (
	ModeNormal Mode = iota
	ModeNight
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeNight:
		return "night"
	default:
		return "unknown"
	}
}

type DecisionAction int

const (
	ActionHold DecisionAction = iota
	ActionPlaceBid
	ActionEscalate
	ActionRetire
)

func (a DecisionAction) String() string {
	switch a {
	case ActionHold:
		return "hold"
	case ActionPlaceBid:
		return "place_bid"
	case ActionEscalate:
		return "escalate"
	case ActionRetire:
		return "retire"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating one auction state against a ceiling.
// Amount carries the candidate bid for place_bid and escalate.
type Decision struct {
	Action DecisionAction
	Amount int64
	Reason string
}

// DecisionEvent is published after every acted-upon decision so the
// dashboard can follow the engine live.
type DecisionEvent struct {
	DomainID   int64          `json:"domain_id"`
	DomainName string         `json:"domain_name"`
	Action     DecisionAction `json:"action"`
	Amount     int64          `json:"amount"`
	Ceiling    int64          `json:"ceiling"`
	Timestamp  time.Time      `json:"timestamp"`
}

// BiddingRules are tunables shared with the dashboard: the site's baseline
// minimum bid and the delta options offered on escalation prompts.
type BiddingRules struct {
	MinimalBet       int64   `json:"minimal_bet"`
	EscalationDeltas []int64 `json:"escalation_deltas"`
}

// SeoMetrics holds the Ahrefs enrichment for a domain, trimmed to the
// columns the dashboard sorts on.
type SeoMetrics struct {
	DomainID          int64
	DomainRating      int64
	AhrefsTop         int64
	Backlinks         int64
	RefPages          int64
	Pages             int64
	RefDomains        int64
	DofollowLinks     int64
	NofollowLinks     int64
	InternalLinks     int64
	ExternalLinks     int64
	TextLinks         int64
	ImageLinks        int64
	LinkedRootDomains int64
	HTMLPages         int64
	CreatedAt         time.Time
}
