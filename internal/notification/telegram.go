package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"autobidder/internal/config"
	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

const DefaultAPIBase = "https://api.telegram.org"

// botAPI is a thin JSON client for the Telegram Bot API. No bot framework:
// the two methods this system needs do not justify one.
type botAPI struct {
	base  string
	token string
	http  *http.Client
}

func newBotAPI(base, token string, timeout time.Duration) *botAPI {
	if base == "" {
		base = DefaultAPIBase
	}

	return &botAPI{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (b *botAPI) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.base, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return err
	}

	if !api.OK {
		return fmt.Errorf("telegram %s failed: %s", method, api.Description)
	}

	if out != nil {
		return json.Unmarshal(api.Result, out)
	}
	return nil
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

// TelegramNotifier delivers escalation prompts to the operator chat. The
// inline buttons carry the whole exchange in their callback data, so the
// dispatcher needs no conversation state.
type TelegramNotifier struct {
	api    *botAPI
	chatID int64
	rules  domain.BiddingRuleDao
	log    logger.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, rules domain.BiddingRuleDao, log logger.Logger) *TelegramNotifier {
	if cfg.Token == "" || cfg.GroupChatID == 0 {
		log.Warn("Telegram disabled: token or group chat id not configured")
		return nil
	}

	return &TelegramNotifier{
		api:    newBotAPI(DefaultAPIBase, cfg.Token, 10*time.Second),
		chatID: cfg.GroupChatID,
		rules:  rules,
		log:    log.Named("telegram_notifier"),
	}
}

func (n *TelegramNotifier) NotifyExceeded(ctx context.Context, domainName string, candidateBid, maxBet, domainID int64) error {
	keyboard := &inlineKeyboard{
		InlineKeyboard: [][]inlineButton{
			{{Text: "Cancel Bet", CallbackData: fmt.Sprintf("cancel_%d", domainID)}},
		},
	}
	for _, delta := range n.rules.Rules().EscalationDeltas {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, []inlineButton{{
			Text:         fmt.Sprintf("+ %d UAH", delta),
			CallbackData: fmt.Sprintf("increase_%d_%d_%d", delta, domainID, candidateBid),
		}})
	}

	msg := sendMessageRequest{
		ChatID: n.chatID,
		Text: fmt.Sprintf("⚠️ Current bet (%d UAH) exceeds our max bet (%d UAH).\nDomain: %s\nWhat would you like to do?",
			candidateBid, maxBet, domainName),
		ReplyMarkup: keyboard,
	}

	if err := n.api.call(ctx, "sendMessage", msg, nil); err != nil {
		return err
	}

	n.log.Info("Notification sent", "domain", domainName, "domain_id", domainID)
	return nil
}
