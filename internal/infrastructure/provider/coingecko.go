package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"
	"marketsync-service/internal/infrastructure/httpx"

	"golang.org/x/time/rate"
)

const coinGeckoSimplePricePath = "/simple/price"

// CoinGecko serves batched spot prices from the public simple-price endpoint.
type CoinGecko struct {
	BaseURL string
	Client  *httpx.Client
	// Limiter throttles outbound calls; nil disables throttling.
	Limiter *rate.Limiter
}

var _ application.PriceSource = (*CoinGecko)(nil)

func (p *CoinGecko) SimplePrices(ctx context.Context, ids []string) (map[string]domain.AssetPrice, error) {
	if p.BaseURL == "" {
		return nil, errors.New("coingecko: missing base url")
	}
	if len(ids) == 0 {
		return map[string]domain.AssetPrice{}, nil
	}
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("coingecko: throttle: %w", err)
		}
	}

	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("coingecko: invalid base url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + coinGeckoSimplePricePath
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	q := u.Query()
	q.Set("ids", strings.Join(sorted, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: create request: %w", err)
	}
	var body map[string]domain.AssetPrice
	if err := client(p.Client).DoJSON(ctx, req, &body); err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	if body == nil {
		body = map[string]domain.AssetPrice{}
	}
	return body, nil
}

func client(c *httpx.Client) *httpx.Client {
	if c == nil {
		return &httpx.Client{}
	}
	return c
}
