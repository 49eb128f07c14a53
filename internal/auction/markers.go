package auction

import (
	"regexp"
	"strings"
)

// The auction site has no API: auction state is signaled by localized
// Ukrainian text markers inside the bid-page markup. They are collected
// here so a site-side wording change is a one-file fix, independent of the
// parsing logic, and each marker can be unit-tested against fixture HTML.
const (
	// "The application window has passed" - shown inside a dismissable
	// danger alert once bidding has closed.
	markerAuctionEnded = "Час прийому заявок минув"

	// "Your application has been saved successfully" - present in the POST
	// response body when a bid was accepted. Checked lowercase because the
	// site varies capitalization between templates.
	markerBidAccepted = "вашу заявку успішно збережено"

	// "Make an offer" - the submit button label the bid form expects back.
	formActionSave = "Зробити пропозицію"

	endedAlertSelector = "div.alert.alert-danger.alert-dismissable"
	currentBidSelector = "input#modal_backorder_sum"
	bidRangeSelector   = "p#modal_backorder_original_info"
)

// "від X до Y" - the allowed next-bid range. Amounts carry ordinary or
// non-breaking spaces as thousands separators, so the digit groups admit
// both and the separators are stripped before numeric parsing.
var bidRangeRe = regexp.MustCompile(`від[\s\x{00A0}]+([\d\s\x{00A0}]+?)[\s\x{00A0}]+до[\s\x{00A0}]+([\d\s\x{00A0}]+)`)

var amountCleaner = strings.NewReplacer("\u00a0", "", " ", "")
