package services

import (
	"testing"

	"autobidder/internal/domain"
)

func i64(v int64) *int64 { return &v }

func testRules() *domain.BiddingRules {
	return &domain.BiddingRules{
		MinimalBet:       900,
		EscalationDeltas: []int64{100, 1000},
	}
}

func TestDecideEndedRetires(t *testing.T) {
	state := domain.AuctionState{Ended: true, CurrentBid: i64(1200), MinNextBid: i64(1300)}

	d := Decide(state, 5000, testRules(), domain.ModeNormal)
	if d.Action != domain.ActionRetire {
		t.Fatalf("expected retire on an ended auction, got %s", d.Action)
	}
}

func TestDecideNoRangeHolds(t *testing.T) {
	state := domain.AuctionState{CurrentBid: i64(900)}

	d := Decide(state, 5000, testRules(), domain.ModeNormal)
	if d.Action != domain.ActionHold {
		t.Fatalf("expected hold without bid range data, got %s", d.Action)
	}
}

func TestDecideCurrentBidSufficientHolds(t *testing.T) {
	state := domain.AuctionState{CurrentBid: i64(1200), MinNextBid: i64(1200)}

	d := Decide(state, 5000, testRules(), domain.ModeNormal)
	if d.Action != domain.ActionHold {
		t.Fatalf("expected hold when the current bid covers the candidate, got %s", d.Action)
	}
}

func TestDecidePlacesWithinCeiling(t *testing.T) {
	state := domain.AuctionState{MinNextBid: i64(1200)}

	d := Decide(state, 1500, testRules(), domain.ModeNormal)
	if d.Action != domain.ActionPlaceBid {
		t.Fatalf("expected place_bid, got %s", d.Action)
	}
	if d.Amount != 1200 {
		t.Fatalf("expected candidate amount 1200, got %d", d.Amount)
	}
}

func TestDecideTiePlaces(t *testing.T) {
	state := domain.AuctionState{MinNextBid: i64(1500)}

	d := Decide(state, 1500, testRules(), domain.ModeNormal)
	if d.Action != domain.ActionPlaceBid {
		t.Fatalf("a candidate exactly at the ceiling must be placed, got %s", d.Action)
	}
}

func TestDecideOverCeilingEscalates(t *testing.T) {
	state := domain.AuctionState{MinNextBid: i64(1200)}

	d := Decide(state, 1000, testRules(), domain.ModeNormal)
	if d.Action != domain.ActionEscalate {
		t.Fatalf("expected escalate over ceiling, got %s", d.Action)
	}
	if d.Amount != 1200 {
		t.Fatalf("escalation must carry the candidate amount, got %d", d.Amount)
	}
}

func TestDecideNightHoldsAboveFloor(t *testing.T) {
	state := domain.AuctionState{MinNextBid: i64(1500)}

	d := Decide(state, 5000, testRules(), domain.ModeNight)
	if d.Action != domain.ActionHold {
		t.Fatalf("night mode must not raise existing bids, got %s", d.Action)
	}
}

func TestDecideNightPlacesAtFloor(t *testing.T) {
	state := domain.AuctionState{MinNextBid: i64(900)}

	d := Decide(state, 1500, testRules(), domain.ModeNight)
	if d.Action != domain.ActionPlaceBid {
		t.Fatalf("an opening bid at the floor is allowed at night, got %s", d.Action)
	}
	if d.Amount != 900 {
		t.Fatalf("expected floor amount 900, got %d", d.Amount)
	}
}

func TestDecideNightEscalatesOverCeilingAtFloor(t *testing.T) {
	state := domain.AuctionState{MinNextBid: i64(900)}

	d := Decide(state, 800, testRules(), domain.ModeNight)
	if d.Action != domain.ActionEscalate {
		t.Fatalf("a floor candidate above the ceiling escalates even at night, got %s", d.Action)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	state := domain.AuctionState{CurrentBid: i64(1000), MinNextBid: i64(1100)}

	first := Decide(state, 1150, testRules(), domain.ModeNormal)
	for i := 0; i < 10; i++ {
		if got := Decide(state, 1150, testRules(), domain.ModeNormal); got != first {
			t.Fatalf("identical inputs produced different decisions: %+v vs %+v", first, got)
		}
	}
}
