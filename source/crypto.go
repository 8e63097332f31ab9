package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pavann19/resilient-microservices/upstream"
)

const (
	cryptoServiceLabel = "Crypto Price Service"
	cryptoPricePath    = "/api/v3/simple/price?ids=bitcoin,ethereum&vs_currencies=usd"
)

// cryptoCoins fixes the coins queried and their output order.
var cryptoCoins = []string{"bitcoin", "ethereum"}

// SeedPrice returns the payload served before the first successful fetch.
func SeedPrice() PricePayload {
	return PricePayload{
		Service:  cryptoServiceLabel,
		Datasets: []string{"bitcoin: -", "ethereum: -"},
	}
}

// NewCrypto creates the crypto price source. The upstream signals rate
// limiting with 429 and gets a 60s cooldown, longer than the search
// upstreams because its free tier throttles far more aggressively.
func NewCrypto(client *upstream.Client, baseURL string, opts ...Option[PricePayload]) *Source[PricePayload] {
	call := upstream.Call{URL: strings.TrimRight(baseURL, "/") + cryptoPricePath}

	fetch := func(ctx context.Context) (PricePayload, error) {
		body, err := client.FetchJSON(ctx, call)
		if err != nil {
			return PricePayload{}, err
		}
		return parsePrices(body)
	}

	defaults := []Option[PricePayload]{
		WithCooldown[PricePayload](60 * time.Second),
		WithRateLimitStatuses[PricePayload](429),
		WithEmpty(func(p PricePayload) bool { return len(p.Datasets) == 0 }),
	}
	return New("crypto", fetch, SeedPrice(), append(defaults, opts...)...)
}

// parsePrices maps the simple-price document {coin: {usd: n}} into display
// lines. json.Number keeps the upstream's own number formatting.
func parsePrices(body []byte) (PricePayload, error) {
	var quotes map[string]struct {
		USD json.Number `json:"usd"`
	}
	if err := json.Unmarshal(body, &quotes); err != nil {
		return PricePayload{}, fmt.Errorf("%w: %v", ErrBadShape, err)
	}

	datasets := make([]string, 0, len(cryptoCoins))
	for _, coin := range cryptoCoins {
		quote, ok := quotes[coin]
		if !ok || quote.USD == "" {
			continue
		}
		datasets = append(datasets, fmt.Sprintf("%s: $%s", coin, quote.USD))
	}

	return PricePayload{Service: cryptoServiceLabel, Datasets: datasets}, nil
}
