package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"

	"autobidder/internal/domain"
)

const biddingRulesKey = "autobidder:bidding_rules"

// BiddingRuleDaoImpl keeps the shared bidding tunables in redis so the
// dashboard can adjust them without a redeploy. First use seeds defaults.
type BiddingRuleDaoImpl struct {
	client *redis.Client
	rules  *domain.BiddingRules
}

func NewBiddingRuleDao(client *redis.Client) *BiddingRuleDaoImpl {
	return &BiddingRuleDaoImpl{
		client: client,
	}
}

func (d *BiddingRuleDaoImpl) LoadRules(ctx context.Context) error {
	data, err := d.client.Get(ctx, biddingRulesKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Seed defaults: the site's baseline minimum bid and the delta
			// options offered on escalation prompts.
			d.rules = &domain.BiddingRules{
				MinimalBet:       900,
				EscalationDeltas: []int64{100, 1000},
			}
			return d.saveRules(ctx)
		}
		return err
	}

	var rules domain.BiddingRules
	if err := json.Unmarshal([]byte(data), &rules); err != nil {
		return err
	}

	d.rules = &rules
	return nil
}

func (d *BiddingRuleDaoImpl) saveRules(ctx context.Context) error {
	data, err := json.Marshal(d.rules)
	if err != nil {
		return err
	}

	return d.client.Set(ctx, biddingRulesKey, string(data), 0).Err()
}

func (d *BiddingRuleDaoImpl) Rules() *domain.BiddingRules {
	if d.rules == nil {
		return &domain.BiddingRules{MinimalBet: 900, EscalationDeltas: []int64{100, 1000}}
	}
	return d.rules
}
