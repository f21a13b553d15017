package processor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/deerfi/flashloan-indexer/internal/api"
	"github.com/deerfi/flashloan-indexer/internal/config"
	"github.com/deerfi/flashloan-indexer/internal/database"
	"github.com/deerfi/flashloan-indexer/internal/flashloan"
	"github.com/deerfi/flashloan-indexer/internal/pricing"
	"github.com/deerfi/flashloan-indexer/internal/realtime"
	"github.com/deerfi/flashloan-indexer/internal/store"
	"github.com/deerfi/flashloan-indexer/internal/tokenmeta"
)

// Indexer wires the module, its collaborators, and the serving surfaces
// together and runs them until shutdown.
type Indexer struct {
	cfg    *config.Config
	logger zerolog.Logger

	db        *database.Database
	client    *ethclient.Client
	module    *flashloan.Module
	processor *Processor
	poller    *pricing.Poller
	apiServer *api.APIServer
}

// NewIndexer creates a new indexer instance
func NewIndexer(cfg *config.Config, logger zerolog.Logger) (*Indexer, error) {
	ctx := context.Background()

	if err := database.RunMigrations(ctx, &cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	manifest, err := flashloan.LoadManifest(cfg.Indexer.ManifestPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	moduleConfig, err := manifest.ModuleConfig()
	if err != nil {
		db.Close()
		return nil, err
	}

	rpcEndpoint := cfg.Chain.RPCEndpoint
	if rpcEndpoint == "" {
		rpcEndpoint = moduleConfig.RPCEndpoint
	}
	client, err := ethclient.Dial(rpcEndpoint)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	derived := make(map[string]decimal.Decimal, len(moduleConfig.Whitelist))
	for _, wt := range moduleConfig.Whitelist {
		price, err := decimal.NewFromString(wt.DerivedETH)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid whitelist price for %s: %w", wt.Address, err)
		}
		derived[wt.Address] = price
	}
	oracle := pricing.NewWhitelist(moduleConfig.WethAddress, derived)

	poller, err := pricing.NewPoller(oracle, pricing.PollerConfig{Interval: cfg.Pricing.PollInterval}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create price poller: %w", err)
	}

	meta, err := tokenmeta.NewRPCFetcher(client, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	entityStore := store.NewPostgres(db.Pool(), logger)
	module := flashloan.New(entityStore, oracle, meta, moduleConfig.FactoryAddress, logger)

	if cfg.Realtime.Enabled {
		publisher := realtime.NewPublisher(realtime.PublishConfig{
			APIURL: cfg.Realtime.APIURL,
			APIKey: cfg.Realtime.APIKey,
		}, logger)
		module.SetPublisher(publisher)
	}

	proc := NewProcessor(client, entityStore, module,
		manifest.StartBlock(), cfg.Indexer.BatchBlocks, cfg.Chain.BlockTime, logger)

	logger.Info().
		Str("factory", moduleConfig.FactoryAddress).
		Uint64("start_block", manifest.StartBlock()).
		Msg("Indexer initialized")

	return &Indexer{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		client:    client,
		module:    module,
		processor: proc,
		poller:    poller,
		apiServer: api.NewAPIServer(db.Pool(), logger),
	}, nil
}

// Start runs the indexer until SIGINT/SIGTERM.
func (i *Indexer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		i.logger.Info().Str("signal", s.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := i.poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start price poller: %w", err)
	}
	defer i.poller.Stop()

	go func() {
		addr := fmt.Sprintf(":%d", i.cfg.Server.Port)
		if err := i.apiServer.Start(ctx, addr); err != nil {
			i.logger.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	err := i.processor.Run(ctx)
	i.client.Close()
	i.db.Close()
	if err != nil && ctx.Err() == nil {
		return err
	}
	i.logger.Info().Msg("Indexer stopped")
	return nil
}
