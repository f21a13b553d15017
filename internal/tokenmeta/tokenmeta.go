// Package tokenmeta resolves ERC-20 token metadata for the pool registry.
package tokenmeta

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Metadata is a token's on-chain self-description. Decimals is nil when the
// contract does not answer a decimals() call; the registry treats that as
// "unknowable" and refuses to create pools for the token.
type Metadata struct {
	Name        string
	Symbol      string
	Decimals    *int
	TotalSupply decimal.Decimal
}

// Fetcher resolves metadata for a token contract.
type Fetcher interface {
	Metadata(ctx context.Context, token common.Address) (*Metadata, error)
}

const erc20ABIString = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// RPCFetcher reads metadata over an RPC connection.
type RPCFetcher struct {
	client *ethclient.Client
	abi    abi.ABI
	logger zerolog.Logger
}

// NewRPCFetcher builds a fetcher over an established client.
func NewRPCFetcher(client *ethclient.Client, logger zerolog.Logger) (*RPCFetcher, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIString))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &RPCFetcher{
		client: client,
		abi:    parsed,
		logger: logger.With().Str("component", "tokenmeta").Logger(),
	}, nil
}

// Metadata fetches name, symbol, decimals and total supply. Name and symbol
// fall back to placeholders when a contract omits them; decimals stays nil on
// failure so the caller can tell "unknown" apart from a real zero.
func (f *RPCFetcher) Metadata(ctx context.Context, token common.Address) (*Metadata, error) {
	meta := &Metadata{
		Name:   "Unknown",
		Symbol: "???",
	}

	contract := bind.NewBoundContract(token, f.abi, f.client, f.client, f.client)
	opts := &bind.CallOpts{Context: ctx}

	results := []interface{}{new(string)}
	if err := contract.Call(opts, &results, "name"); err != nil {
		f.logger.Debug().Err(err).Str("token", token.Hex()).Msg("Failed to fetch token name")
	} else if name, ok := results[0].(*string); ok && name != nil && *name != "" {
		meta.Name = *name
	}

	results = []interface{}{new(string)}
	if err := contract.Call(opts, &results, "symbol"); err != nil {
		f.logger.Debug().Err(err).Str("token", token.Hex()).Msg("Failed to fetch token symbol")
	} else if symbol, ok := results[0].(*string); ok && symbol != nil && *symbol != "" {
		meta.Symbol = *symbol
	}

	results = []interface{}{new(uint8)}
	if err := contract.Call(opts, &results, "decimals"); err != nil {
		f.logger.Debug().Err(err).Str("token", token.Hex()).Msg("Failed to fetch token decimals")
	} else if dec, ok := results[0].(*uint8); ok && dec != nil {
		d := int(*dec)
		meta.Decimals = &d
	}

	results = []interface{}{new(*big.Int)}
	if err := contract.Call(opts, &results, "totalSupply"); err != nil {
		f.logger.Debug().Err(err).Str("token", token.Hex()).Msg("Failed to fetch token totalSupply")
	} else if supply, ok := results[0].(**big.Int); ok && supply != nil && *supply != nil {
		meta.TotalSupply = decimal.NewFromBigInt(*supply, 0)
	}

	return meta, nil
}
