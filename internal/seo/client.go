package seo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

const DefaultBaseURL = "https://apiv2.ahrefs.com"

// Client talks to the Ahrefs v2 API. Amounts come back as a mix of JSON
// numbers and numeric strings, hence the flexNumber fields.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logger.Logger
}

func NewClient(baseURL, token string, log logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.Named("ahrefs_client"),
	}
}

// flexNumber accepts both quoted and bare JSON numbers.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	*n = flexNumber(strings.Trim(string(data), `"`))
	return nil
}

type domainRatingResponse struct {
	Domain struct {
		DomainRating flexNumber `json:"domain_rating"`
		AhrefsTop    flexNumber `json:"ahrefs_top"`
	} `json:"domain"`
}

type metricsResponse struct {
	Metrics map[string]flexNumber `json:"metrics"`
}

// FetchMetrics gathers both the domain rating and the extended metrics for
// one domain name.
func (c *Client) FetchMetrics(ctx context.Context, domainName string) (*domain.SeoMetrics, error) {
	var rating domainRatingResponse
	err := c.get(ctx, url.Values{
		"target": {domainName},
		"output": {"json"},
		"from":   {"domain_rating"},
		"mode":   {"domain"},
	}, &rating)
	if err != nil {
		return nil, fmt.Errorf("domain rating for %s: %w", domainName, err)
	}

	var extended metricsResponse
	err = c.get(ctx, url.Values{
		"target": {domainName},
		"limit":  {"1000"},
		"output": {"json"},
		"from":   {"metrics_extended"},
		"mode":   {"subdomains"},
	}, &extended)
	if err != nil {
		return nil, fmt.Errorf("extended metrics for %s: %w", domainName, err)
	}

	m := extended.Metrics
	return &domain.SeoMetrics{
		DomainRating:      asInt(rating.Domain.DomainRating),
		AhrefsTop:         asInt(rating.Domain.AhrefsTop),
		Backlinks:         asInt(m["backlinks"]),
		RefPages:          asInt(m["refpages"]),
		Pages:             asInt(m["pages"]),
		RefDomains:        asInt(m["refdomains"]),
		DofollowLinks:     asInt(m["dofollow"]),
		NofollowLinks:     asInt(m["nofollow"]),
		InternalLinks:     asInt(m["links_internal"]),
		ExternalLinks:     asInt(m["links_external"]),
		TextLinks:         asInt(m["text"]),
		ImageLinks:        asInt(m["image"]),
		LinkedRootDomains: asInt(m["linked_root_domains"]),
		HTMLPages:         asInt(m["html_pages"]),
		CreatedAt:         time.Now(),
	}, nil
}

// SubscriptionInfo returns the raw API-limit balance payload for display.
func (c *Client) SubscriptionInfo(ctx context.Context) (map[string]interface{}, error) {
	var info map[string]interface{}
	err := c.get(ctx, url.Values{
		"from":   {"subscription_info"},
		"output": {"json"},
	}, &info)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ahrefs API returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// asInt tolerates both "81.5"-style strings and plain numbers, matching
// what the API actually returns for domain_rating.
func asInt(n flexNumber) int64 {
	s := string(n)
	if s == "" || s == "null" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
