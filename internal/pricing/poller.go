package pricing

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

const defaultPollInterval = 5 * time.Minute

// Poller periodically refreshes the oracle's ETH/USD quote so that reserve
// events arriving between chain price updates still value against a recent
// quote.
type Poller struct {
	oracle    *WhitelistOracle
	client    *CoinGeckoClient
	scheduler gocron.Scheduler
	interval  time.Duration
	logger    zerolog.Logger
}

type PollerConfig struct {
	Interval time.Duration
}

func NewPoller(oracle *WhitelistOracle, cfg PollerConfig, logger zerolog.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Poller{
		oracle:    oracle,
		client:    NewCoinGeckoClient(),
		scheduler: s,
		interval:  cfg.Interval,
		logger:    logger.With().Str("component", "price_poller").Logger(),
	}, nil
}

// Start schedules the refresh job and runs one immediately.
func (p *Poller) Start(ctx context.Context) error {
	_, err := p.scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(p.pollOnce, ctx),
		gocron.WithName("refresh-eth-usd"),
	)
	if err != nil {
		return err
	}

	p.logger.Info().Dur("interval", p.interval).Msg("Starting ETH/USD price poller")
	p.scheduler.Start()

	go p.pollOnce(ctx)
	return nil
}

// Stop shuts the scheduler down.
func (p *Poller) Stop() {
	if err := p.scheduler.Shutdown(); err != nil {
		p.logger.Error().Err(err).Msg("Error shutting down price poller")
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	price, err := p.client.EthUSD(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("ETH/USD refresh failed")
		return
	}
	p.oracle.SetEthPriceUSD(price)
	p.logger.Debug().Str("price", price.String()).Msg("Refreshed ETH/USD price")
}
