package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"autobidder/internal/config"
	"autobidder/pkg/logger"
)

// Client is the authenticated HTTP session against the auction site. The
// site keeps auth state in cookies, so one cookie jar backs every call.
// The session is not safe for concurrent use; the scheduling layer keeps
// sweeps single-flight.
type Client struct {
	http *http.Client
	cfg  config.VoodooConfig
	log  logger.Logger

	// Login is attempted at most once per process run.
	authenticated bool
}

func NewClient(cfg config.VoodooConfig, log logger.Logger) *Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New with nil options cannot fail today
		panic(err)
	}

	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		cfg: cfg,
		log: log.Named("auction_client"),
	}
}

type authResponse struct {
	AuthID int64 `json:"auth_id"`
}

// IsLoggedIn probes the ajax auth endpoint. The site answers with
// auth_id == 0 for anonymous sessions, in which case a login is attempted
// immediately. Failures are logged and reported as false, never raised.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	c.log.Info("Checking user authentication status")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+c.cfg.AuthPath, nil)
	if err != nil {
		c.log.Error("Failed to build auth probe request", "error", err)
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("Error during login check", "error", err)
		return false
	}
	defer resp.Body.Close()

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		c.log.Error("Malformed auth probe response", "error", err)
		return false
	}

	if auth.AuthID == 0 {
		c.log.Warn("User not logged in, attempting login")
		return c.Login(ctx)
	}

	c.authenticated = true
	c.log.Info("User is already logged in")
	return true
}

// Login submits the stored credentials. It short-circuits once a login has
// succeeded this run; the session cookie is assumed to expire server-side.
func (c *Client) Login(ctx context.Context) bool {
	if c.authenticated {
		c.log.Info("Skipping login, session already authenticated")
		return true
	}

	c.log.Info("Attempting to log in to the auction site")

	form := url.Values{
		"auth_login":    {c.cfg.Username},
		"auth_password": {c.cfg.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+c.cfg.AuthPath, strings.NewReader(form.Encode()))
	if err != nil {
		c.log.Error("Failed to build login request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("Login failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error("Login rejected", "status", resp.StatusCode)
		return false
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		c.log.Error("Malformed login response", "error", err)
		return false
	}

	if auth.AuthID <= 0 {
		c.log.Error("Login did not yield an authenticated identity", "auth_id", auth.AuthID)
		return false
	}

	c.authenticated = true
	c.log.Info("Login successful", "auth_id", auth.AuthID)
	return true
}

// EnsureAuthenticated is the single entry point the bidding engine uses
// before touching auction pages.
func (c *Client) EnsureAuthenticated(ctx context.Context) bool {
	return c.IsLoggedIn(ctx) || c.Login(ctx)
}

// FetchBidPage fetches the bid page for one backorder domain id. Non-200
// responses are soft failures: the caller skips the domain this round.
func (c *Client) FetchBidPage(ctx context.Context, domainID int64) (string, error) {
	bidURL := fmt.Sprintf("%s%s?backorder_domain_id=%d", c.cfg.BaseURL, c.cfg.BidPath, domainID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bidURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bid page for domain %d returned status %d", domainID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// SubmitBid posts a bid. The site answers 200 even for rejected bids, so
// success is determined by the localized acceptance phrase in the body.
// Network errors are caught here and reported as failure.
func (c *Client) SubmitBid(ctx context.Context, domainID, amount int64) bool {
	bidURL := fmt.Sprintf("%s%s?backorder_domain_id=%d", c.cfg.BaseURL, c.cfg.BidPath, domainID)

	form := url.Values{
		"backorder_sum":     {strconv.FormatInt(amount, 10)},
		"form_action[save]": {formActionSave},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bidURL, strings.NewReader(form.Encode()))
	if err != nil {
		c.log.Error("Failed to build bid request", "domain_id", domainID, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("Error placing bid", "domain_id", domainID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Error("Bid request rejected", "domain_id", domainID, "status", resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error("Failed to read bid response", "domain_id", domainID, "error", err)
		return false
	}

	snippet := string(body)
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}
	c.log.Debug("Bid response snippet", "domain_id", domainID, "body", snippet)

	if !strings.Contains(strings.ToLower(string(body)), markerBidAccepted) {
		c.log.Error("Bid response did not indicate success", "domain_id", domainID, "amount", amount)
		return false
	}

	c.log.Info("Successfully placed bid", "domain_id", domainID, "amount", amount)
	return true
}

// FetchListingPage fetches one page of the expiring-domain listings for the
// catalog crawler. Page 0 means the first page (no page parameter).
func (c *Client) FetchListingPage(ctx context.Context, day int64, page int) (string, error) {
	params := url.Values{"day": {strconv.FormatInt(day, 10)}}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	listingURL := fmt.Sprintf("%s%s?%s", c.cfg.BaseURL, c.cfg.ListingPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("listing page %d returned status %d", page, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}
