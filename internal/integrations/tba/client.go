// Package tba is a read-only client for The Blue Alliance team registry.
//
// The connector contract is graceful degradation: any HTTP failure, timeout,
// unexpected payload, or missing API key yields an empty result instead of an
// error, so a broken registry never fails a chat turn.
package tba

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"frc-chat-gateway/internal/enrichment"
)

const defaultBaseURL = "https://www.thebluealliance.com/api/v3"

var teamNumberPattern = regexp.MustCompile(`^\d{1,5}$`)

// Getter resolves the TBA API key from the parameter store. A missing
// parameter resolves to an empty key, which disables the connector.
type Getter interface {
	GetOptionalParameter(ctx context.Context, name string) (string, error)
}

// team is the subset of the TBA team object used in fragments.
type team struct {
	Nickname   string `json:"nickname"`
	Name       string `json:"name"`
	City       string `json:"city"`
	StateProv  string `json:"state_prov"`
	Country    string `json:"country"`
	Website    string `json:"website"`
	RookieYear int    `json:"rookie_year"`
}

type event struct {
	Name string `json:"name"`
}

type award struct {
	Name string `json:"name"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	paramName  string

	keyOnce sync.Once
	apiKey  string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a TBA client. The API key is fetched from the parameter
// store on first lookup and cached for the process lifetime.
func NewClient(getter Getter, paramName string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, fmt.Errorf("tba: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, fmt.Errorf("tba: key parameter name must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 8 * time.Second},
		getter:     getter,
		paramName:  paramName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) string {
	c.keyOnce.Do(func() {
		key, err := c.getter.GetOptionalParameter(ctx, c.paramName)
		if err != nil {
			slog.Warn("tba: api key unavailable, lookups disabled", "err", err)
			return
		}
		c.apiKey = strings.TrimSpace(key)
	})
	return c.apiKey
}

// LookupTeam fetches live data for a team number. Current-season events and
// recent awards are fetched best-effort on top of the base team record; each
// failure just shortens the fragment.
func (c *Client) LookupTeam(ctx context.Context, teamNumber string) (enrichment.Fragment, bool) {
	if !teamNumberPattern.MatchString(teamNumber) {
		return enrichment.Fragment{}, false
	}
	key := c.resolveAPIKey(ctx)
	if key == "" {
		return enrichment.Fragment{}, false
	}

	var t team
	if !c.getJSON(ctx, key, "/team/frc"+teamNumber, &t) {
		return enrichment.Fragment{}, false
	}

	year := time.Now().Year()

	var b strings.Builder
	fmt.Fprintf(&b, "FRC Team %s (The Blue Alliance, %d):\n", teamNumber, year)
	fmt.Fprintf(&b, "- Nickname: %s\n", orNA(t.Nickname))
	fmt.Fprintf(&b, "- Full name: %s\n", orNA(t.Name))
	fmt.Fprintf(&b, "- Location: %s, %s, %s\n", orNA(t.City), orNA(t.StateProv), orNA(t.Country))
	if t.RookieYear > 0 {
		fmt.Fprintf(&b, "- Rookie year: %d\n", t.RookieYear)
	}
	if t.Website != "" {
		fmt.Fprintf(&b, "- Website: %s\n", t.Website)
	}

	var events []event
	if c.getJSON(ctx, key, fmt.Sprintf("/team/frc%s/events/%d", teamNumber, year), &events) && len(events) > 0 {
		names := make([]string, 0, 3)
		for _, e := range events[:min(3, len(events))] {
			names = append(names, e.Name)
		}
		fmt.Fprintf(&b, "- %d events: %s\n", year, strings.Join(names, ", "))
	}

	for _, awardYear := range []int{year, year - 1} {
		var awards []award
		if c.getJSON(ctx, key, fmt.Sprintf("/team/frc%s/awards/%d", teamNumber, awardYear), &awards) && len(awards) > 0 {
			names := make([]string, 0, 5)
			for _, a := range awards[:min(5, len(awards))] {
				names = append(names, a.Name)
			}
			fmt.Fprintf(&b, "- %d awards (%d): %s\n", awardYear, len(awards), strings.Join(names, ", "))
		}
	}

	return enrichment.Fragment{Source: "The Blue Alliance", Body: b.String()}, true
}

// getJSON performs one authenticated GET and decodes the body into out.
// Any failure returns false.
func (c *Client) getJSON(ctx context.Context, apiKey, path string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-TBA-Auth-Key", apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("tba: request failed", "path", path, "err", err)
		return false
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		slog.Warn("tba: unexpected status", "path", path, "status", res.StatusCode)
		return false
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return false
	}
	return json.Unmarshal(buf, out) == nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
