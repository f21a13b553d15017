package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const coingeckoSimplePriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"

// CoinGeckoClient fetches the spot ETH/USD quote.
type CoinGeckoClient struct {
	http *http.Client
}

// NewCoinGeckoClient creates a client with a sane request timeout.
func NewCoinGeckoClient() *CoinGeckoClient {
	return &CoinGeckoClient{
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// EthUSD returns the current ETH/USD price.
func (c *CoinGeckoClient) EthUSD(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coingeckoSimplePriceURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price request returned status %d", resp.StatusCode)
	}

	var body struct {
		Ethereum struct {
			USD decimal.Decimal `json:"usd"`
		} `json:"ethereum"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}

	return body.Ethereum.USD, nil
}
