package tariff

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jakewins/price-signals/core/model"
	"github.com/jakewins/price-signals/infra/logger"
	"github.com/jakewins/price-signals/tariff/auth"
)

const defaultBaseURL = "https://digital.iservices.rte-france.com/open_api/wholesale_market/v2/france_power_exchanges"

// Client fetches day-ahead prices from the wholesale market API.
type Client struct {
	auth    *auth.ClientCred
	http    *http.Client
	log     logger.Logger
	clock   func() time.Time
	baseURL string

	startDate time.Time
	endDate   time.Time
}

// NewClient builds a market client. Credentials are optional so the client
// can also talk to unauthenticated endpoints such as the local mock.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger.New("tariff-client"),
		clock:   time.Now,
		baseURL: cfg.BaseURL,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if cfg.Auth.Enabled() {
		c.auth = auth.NewClientCred(cfg.Auth)
	}
	return c
}

// Fetch retrieves the market data for the window set through options.
func (c *Client) Fetch(ctx context.Context, opts ...Option) (*Response, error) {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.startDate.IsZero() || c.endDate.IsZero() {
		return nil, fmt.Errorf("start and end dates required")
	}
	if !c.endDate.After(c.startDate) {
		return nil, fmt.Errorf("end date must be after start date")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("start_date", c.startDate.Format(time.RFC3339))
	q.Set("end_date", c.endDate.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var market Response
	if err := json.Unmarshal(body, &market); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &market, nil
}

// Prices fetches the window starting at the current hour and converts it
// into a per-step series.
func (c *Client) Prices(ctx context.Context, horizon int) ([]model.EurPerKWh, error) {
	start := c.clock().Truncate(time.Hour)
	end := start.Add(time.Duration(horizon) * time.Hour)
	resp, err := c.Fetch(ctx, WithStartDate(start), WithEndDate(end))
	if err != nil {
		return nil, err
	}
	c.log.Infof("fetched %d market windows from %s", len(resp.FrancePowerExchanges), c.baseURL)
	return resp.Series(horizon)
}
