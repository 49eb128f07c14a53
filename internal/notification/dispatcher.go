package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"autobidder/internal/config"
	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

// DomainProcessor re-runs the bidding flow for one domain after the operator
// raises a ceiling.
type DomainProcessor interface {
	ProcessDomain(ctx context.Context, domainID int64) error
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *chatMessage   `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type chatMessage struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

type callbackQuery struct {
	ID      string       `json:"id"`
	Data    string       `json:"data"`
	Message *chatMessage `json:"message"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset"`
	Timeout        int64    `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type editMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

// Dispatcher long-polls the bot for operator answers to escalation prompts.
// Callback data is the only state: "cancel_{domainID}" drops the bet,
// "increase_{delta}_{domainID}_{candidate}" raises the ceiling to
// candidate+delta and kicks a single-domain reprocess.
type Dispatcher struct {
	api         *botAPI
	chatID      int64
	pollTimeout time.Duration
	bets        domain.BetRepository
	escalations domain.EscalationCache
	processor   DomainProcessor
	log         logger.Logger

	offset int64
}

func NewDispatcher(cfg config.TelegramConfig, bets domain.BetRepository, escalations domain.EscalationCache,
	processor DomainProcessor, log logger.Logger) *Dispatcher {
	if cfg.Token == "" || cfg.GroupChatID == 0 {
		return nil
	}

	return &Dispatcher{
		api:         newBotAPI(DefaultAPIBase, cfg.Token, cfg.PollTimeout+10*time.Second),
		chatID:      cfg.GroupChatID,
		pollTimeout: cfg.PollTimeout,
		bets:        bets,
		escalations: escalations,
		processor:   processor,
		log:         log.Named("telegram_dispatcher"),
	}
}

// Run polls until the context is cancelled. Poll errors back off and retry;
// a dead dispatcher would strand every escalated bet.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("Telegram dispatcher started", "chat_id", d.chatID)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Telegram dispatcher stopped")
			return
		default:
		}

		updates, err := d.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.log.Error("Failed to poll updates", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			continue
		}

		for _, u := range updates {
			d.offset = u.UpdateID + 1
			d.handleUpdate(ctx, u)
		}
	}
}

func (d *Dispatcher) getUpdates(ctx context.Context) ([]update, error) {
	var updates []update
	err := d.api.call(ctx, "getUpdates", getUpdatesRequest{
		Offset:         d.offset,
		Timeout:        int64(d.pollTimeout / time.Second),
		AllowedUpdates: []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

func (d *Dispatcher) handleUpdate(ctx context.Context, u update) {
	switch {
	case u.CallbackQuery != nil:
		d.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		d.handleMessage(ctx, u)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, u update) {
	if u.Message.Chat.ID != d.chatID {
		return
	}

	if strings.TrimSpace(u.Message.Text) == "/test" {
		err := d.api.call(ctx, "sendMessage", sendMessageRequest{
			ChatID: d.chatID,
			Text:   "Bot is alive and polling.",
		}, nil)
		if err != nil {
			d.log.Error("Failed to answer /test", "error", err)
		}
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *callbackQuery) {
	parts := strings.Split(cb.Data, "_")

	var reply string
	var err error
	switch parts[0] {
	case "cancel":
		reply, err = d.handleCancel(ctx, parts)
	case "increase":
		reply, err = d.handleIncrease(ctx, parts)
	default:
		d.log.Warn("Unknown callback action", "data", cb.Data)
		return
	}

	if err != nil {
		d.log.Error("Callback handling failed", "data", cb.Data, "error", err)
		reply = "Something went wrong, check the logs."
	}

	if err := d.api.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: cb.ID}, nil); err != nil {
		d.log.Warn("Failed to ack callback", "error", err)
	}

	if cb.Message != nil {
		edit := editMessageRequest{
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			Text:      withDomainLine(cb.Message.Text, reply),
		}
		if err := d.api.call(ctx, "editMessageText", edit, nil); err != nil {
			d.log.Warn("Failed to edit prompt message", "error", err)
		}
	}
}

func (d *Dispatcher) handleCancel(ctx context.Context, parts []string) (string, error) {
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed cancel callback: %v", parts)
	}
	domainID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed cancel callback: %v", parts)
	}

	if err := d.bets.DeleteBet(ctx, domainID); err != nil {
		return "", err
	}
	if err := d.escalations.ClearNotified(ctx, domainID); err != nil {
		d.log.Warn("Failed to clear escalation mark", "domain_id", domainID, "error", err)
	}

	d.log.Info("Bet cancelled by operator", "domain_id", domainID)
	return "🗑 Bet deleted.", nil
}

func (d *Dispatcher) handleIncrease(ctx context.Context, parts []string) (string, error) {
	if len(parts) != 4 {
		return "", fmt.Errorf("malformed increase callback: %v", parts)
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed increase callback: %v", parts)
	}
	domainID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed increase callback: %v", parts)
	}
	currentBet, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed increase callback: %v", parts)
	}

	newMax := currentBet + amount
	if err := d.bets.UpdateMaxBet(ctx, domainID, newMax); err != nil {
		return "", err
	}
	if err := d.escalations.ClearNotified(ctx, domainID); err != nil {
		d.log.Warn("Failed to clear escalation mark", "domain_id", domainID, "error", err)
	}

	// Reprocess out of band so a busy sweep lock does not stall the poll loop.
	go func() {
		if err := d.processor.ProcessDomain(context.Background(), domainID); err != nil {
			d.log.Warn("Deferred reprocess failed", "domain_id", domainID, "error", err)
		}
	}()

	d.log.Info("Max bet raised by operator", "domain_id", domainID, "max_bet", newMax)
	return fmt.Sprintf("✅ Max bet raised to %d UAH.", newMax), nil
}

// withDomainLine keeps the "Domain: ..." line from the original prompt so the
// edited message still says which auction it was about.
func withDomainLine(original, reply string) string {
	for _, line := range strings.Split(original, "\n") {
		if strings.HasPrefix(line, "Domain: ") {
			return line + "\n" + reply
		}
	}
	return reply
}
