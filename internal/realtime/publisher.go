// Package realtime pushes entity updates to Centrifugo channels so UIs can
// follow pools and flash loans without polling.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/gocent/v3"
	"github.com/rs/zerolog"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

type Publisher struct {
	gc     *gocent.Client
	logger zerolog.Logger
}

type PublishConfig struct {
	APIURL string
	APIKey string
}

func NewPublisher(config PublishConfig, logger zerolog.Logger) *Publisher {
	return &Publisher{
		gc: gocent.New(gocent.Config{
			Addr: config.APIURL,
			Key:  config.APIKey,
		}),
		logger: logger.With().Str("component", "realtime-publisher").Logger(),
	}
}

// PublishPool pushes the pool's current reserves and prices to its channel.
func (p *Publisher) PublishPool(ctx context.Context, pool *entity.Pool) error {
	payload := map[string]any{
		"type": "pool.update",
		"pool": pool,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal pool payload: %w", err)
	}

	channel := fmt.Sprintf("flashloan.pool.%s", pool.ID)
	if _, err := p.gc.Publish(ctx, channel, payloadBytes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug().Str("pool", pool.ID).Msg("Published pool update")
	return nil
}

// PublishFlashLoan pushes a recorded flash loan to the pool's loan channel
// and to the global firehose channel.
func (p *Publisher) PublishFlashLoan(ctx context.Context, loan *entity.FlashLoan) error {
	payload := map[string]any{
		"type":       "flashloan.new",
		"flash_loan": loan,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal flash loan payload: %w", err)
	}

	channel := fmt.Sprintf("flashloan.pool.%s.loans", loan.Pool)
	if _, err := p.gc.Publish(ctx, channel, payloadBytes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	if _, err := p.gc.Publish(ctx, "flashloan.loans", payloadBytes); err != nil {
		return fmt.Errorf("failed to publish to firehose: %w", err)
	}

	p.logger.Debug().Str("flash_loan", loan.ID).Msg("Published flash loan")
	return nil
}
