package auction

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

// Parser turns a raw bid page into an AuctionState. It is deliberately
// forgiving: a missing element or an unparsable number downgrades that
// field to absent instead of failing the whole page.
type Parser struct {
	log logger.Logger
}

func NewParser(log logger.Logger) *Parser {
	return &Parser{log: log.Named("page_parser")}
}

func (p *Parser) ParseBidPage(html string) domain.AuctionState {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.log.Warn("Failed to build document from bid page", "error", err)
		return domain.AuctionState{}
	}

	// Ended takes precedence over everything else on the page.
	ended := false
	doc.Find(endedAlertSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.TrimSpace(s.Text()), markerAuctionEnded) {
			ended = true
			return false
		}
		return true
	})
	if ended {
		return domain.AuctionState{Ended: true}
	}

	var state domain.AuctionState

	if value, exists := doc.Find(currentBidSelector).Attr("value"); exists {
		state.CurrentBid = p.parseAmount(value, "current_bid")
	}

	rangeText := doc.Find(bidRangeSelector).Text()
	if match := bidRangeRe.FindStringSubmatch(rangeText); match != nil {
		// The lower bound of "від X до Y" is the minimum viable next bid.
		state.MinNextBid = p.parseAmount(match[1], "min_next_bid")
	}

	return state
}

func (p *Parser) parseAmount(raw, field string) *int64 {
	cleaned := amountCleaner.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil
	}

	value, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		p.log.Warn("Failed to parse amount from bid page", "field", field, "raw", raw)
		return nil
	}

	return &value
}
