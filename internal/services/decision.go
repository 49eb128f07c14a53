package services

import (
	"autobidder/internal/domain"
)

// Decide maps one fresh auction state and the operator's ceiling to an
// action. It is a pure function: identical inputs always yield the same
// decision, which is what makes the engine testable without the site.
//
// Night mode is conservative. It never raises an existing bid: a candidate
// above the baseline floor means someone already bid, so the engine holds
// until the operator's day window.
func Decide(state domain.AuctionState, maxBet int64, rules *domain.BiddingRules, mode domain.Mode) domain.Decision {
	if state.Ended {
		return domain.Decision{Action: domain.ActionRetire, Reason: "auction closed"}
	}

	if state.MinNextBid == nil {
		return domain.Decision{Action: domain.ActionHold, Reason: "no actionable bid data"}
	}

	candidate := *state.MinNextBid

	if state.CurrentBid != nil && *state.CurrentBid >= candidate {
		return domain.Decision{Action: domain.ActionHold, Reason: "current bid already sufficient"}
	}

	if mode == domain.ModeNight && candidate > rules.MinimalBet {
		return domain.Decision{
			Action: domain.ActionHold,
			Amount: candidate,
			Reason: "night mode does not raise existing bids",
		}
	}

	// A candidate exactly at the ceiling is biddable, not escalated.
	if candidate <= maxBet {
		return domain.Decision{Action: domain.ActionPlaceBid, Amount: candidate, Reason: "within ceiling"}
	}

	return domain.Decision{Action: domain.ActionEscalate, Amount: candidate, Reason: "ceiling exceeded"}
}
