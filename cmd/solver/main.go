package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/batching"
	"github.com/aman-zulfiqar/escrow-solver/internal/cache"
	"github.com/aman-zulfiqar/escrow-solver/internal/config"
	"github.com/aman-zulfiqar/escrow-solver/internal/flags"
	"github.com/aman-zulfiqar/escrow-solver/internal/intents"
	"github.com/aman-zulfiqar/escrow-solver/internal/keeper"
	"github.com/aman-zulfiqar/escrow-solver/internal/lease"
	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/metrics"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/routing"
	"github.com/aman-zulfiqar/escrow-solver/internal/scheduler"
	"github.com/aman-zulfiqar/escrow-solver/internal/server"
	"github.com/aman-zulfiqar/escrow-solver/internal/solver"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage/badgerstore"
	"github.com/aman-zulfiqar/escrow-solver/internal/txbuilder"
	"github.com/aman-zulfiqar/escrow-solver/internal/wallet"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	logger := newLogger()

	app := cli.NewApp()
	app.Name = "escrow-solver"
	app.Version = Version
	app.Usage = "batch settlement solver and keepers for escrow swap intents"
	app.Flags = []cli.Flag{envFileFlag}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "run the solver, the keepers and the ops server",
			Action: func(c *cli.Context) error { return run(c, logger) },
		},
		{
			Name:   "escrow-address",
			Usage:  "print the escrow script address for a validator hash",
			Flags:  []cli.Flag{scriptHashFlag, networkFlag},
			Action: escrowAddress,
		},
		{
			Name:   "watch",
			Usage:  "follow confirmed ledger events published by a running solver",
			Flags:  []cli.Flag{redisAddrFlag, channelFlag, kindFlag},
			Action: func(c *cli.Context) error { return watch(c, logger) },
		},
	}
	// .env is loaded before any command reads the environment
	app.Before = func(c *cli.Context) error {
		loadEnv(logger, c.String(envFileFlagName))
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Error("exiting")
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// loadEnv loads path, or the .env at the module root when path is empty
func loadEnv(logger *logrus.Logger, path string) {
	if path == "" {
		_, filename, _, _ := runtime.Caller(0)
		path = filepath.Join(filepath.Dir(filename), "../..", ".env")
	}
	if err := godotenv.Load(path); err != nil {
		logger.Debugf("no .env file found at %s, using system environment variables", path)
		return
	}
	logger.Infof("loaded .env from %s", path)
}

func escrowAddress(c *cli.Context) error {
	network := ledger.Network(strings.ToLower(c.String(networkFlagName)))
	if network != ledger.Mainnet && network != ledger.Testnet {
		return fmt.Errorf("unknown network %q", network)
	}
	addr, err := ledger.ScriptAddress(c.String(scriptHashFlagName), network)
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}

func watch(c *cli.Context, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{Addr: c.String(redisAddrFlagName)})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	channel := c.String(channelFlagName)
	if kind := c.String(kindFlagName); kind != "" {
		channel = cache.KindChannel(models.EventKind(kind))
	}

	sub := cache.NewSubscriber(client, logger)
	return sub.Subscribe(ctx, channel, func(ev *models.LedgerEvent) {
		logger.WithFields(logrus.Fields{
			"tx":      ev.TxHash,
			"kind":    ev.Kind,
			"pool":    ev.PoolID,
			"items":   len(ev.Items),
			"surplus": ev.Surplus,
			"fee":     ev.Fee,
		}).Info("confirmed")
	})
}

// closers runs shutdown hooks in reverse registration order
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(c *cli.Context, logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, keeping info")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer func() { cleanup.run() }()

	db, err := badgerstore.Open(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	cleanup.add(func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("failed to close store")
		}
	})

	ledgerClient := ledger.NewClient(ledger.ClientConfig{
		BaseURL:      cfg.LedgerRPCURL,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PollInterval: cfg.ConfirmPollInterval,
		Logger:       logger,
	})
	builder := txbuilder.NewClient(cfg.TxBuilderURL, cfg.TxBuilderAPIKey, cfg.HTTPTimeout)

	var signer wallet.Signer
	if cfg.CanSign() {
		w, err := wallet.NewWallet(wallet.WalletConfig{
			PrivateKey: cfg.KeeperSigningKey,
			Network:    cfg.Network,
			Address:    cfg.KeeperAddress,
		})
		if err != nil {
			return fmt.Errorf("load signing key: %w", err)
		}
		signer = w
		logger.WithField("address", w.Address()).Info("signing enabled")
	}

	var rclient *redis.Client
	if cfg.RedisAddr != "" {
		rclient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cleanup.add(func() { _ = rclient.Close() })
		if err := rclient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
	}

	leases, err := newLeases(cfg, rclient, logger)
	if err != nil {
		return err
	}

	var switches flags.Store = flags.NewMemoryStore()
	var events storage.EventFeed
	var journals []storage.Journal
	if rclient != nil {
		store, err := flags.NewRedisStore(rclient)
		if err != nil {
			return err
		}
		switches = store

		rc, err := cache.NewRedisCache(rclient)
		if err != nil {
			return err
		}
		events = rc
		journals = append(journals, rc)
	}
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			// the journal is best effort, settlement does not depend on it
			logger.WithError(err).Warn("clickhouse unavailable, continuing without it")
		} else {
			cleanup.add(func() { _ = ch.Close() })
			journals = append(journals, ch)
		}
	}

	pools := routing.NewPoolCache(db.Pools(), cfg.PoolCacheTTL, logger)
	optimizer := routing.NewOptimizer(routing.OptimizerConfig{
		Pools:             pools,
		Bridge:            cfg.BridgeAsset,
		FeeDenominator:    cfg.FeeDenominator,
		MaxPriceImpactBps: uint16(cfg.MaxPriceImpactBps),
		Logger:            logger,
	})
	batcher := batching.NewBuilder(batching.DefaultBudget, logger)

	slv := solver.New(solver.Config{
		Collector: intents.NewCollector(intents.CollectorConfig{
			Ledger:        ledgerClient,
			Leases:        leases,
			EscrowAddress: cfg.EscrowAddress,
			Logger:        logger,
		}),
		Optimizer: optimizer,
		Batcher:   batcher,
		Settler: solver.NewSettler(solver.SettlerConfig{
			Ledger:         ledgerClient,
			Builder:        builder,
			Signer:         signer,
			Intents:        db.Intents(),
			Journals:       journals,
			ConfirmTimeout: cfg.ConfirmTimeout,
			Logger:         logger,
		}),
		Logger: logger,
	})
	reclaimer := keeper.NewReclaimer(keeper.ReclaimerConfig{
		Ledger:         ledgerClient,
		Builder:        builder,
		Signer:         signer,
		Intents:        db.Intents(),
		Orders:         db.Orders(),
		Journals:       journals,
		KeeperAddress:  cfg.KeeperAddress,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})
	executor := keeper.NewIntervalExecutor(keeper.IntervalConfig{
		Ledger:         ledgerClient,
		Builder:        builder,
		Signer:         signer,
		Orders:         db.Orders(),
		Pools:          db.Pools(),
		Journals:       journals,
		SolverAddress:  cfg.SolverAddress,
		BatchLimit:     cfg.IntervalBatchLimit,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	// a tick may wait out one confirmation per batch, the timeout bounds a stuck cycle
	jobTimeout := 10 * cfg.ConfirmTimeout
	jobCfg := scheduler.JobConfig{Switches: switches, Timeout: jobTimeout, Logger: logger}
	jobs := []struct {
		job      *scheduler.Job
		interval time.Duration
	}{
		{scheduler.NewJob(flags.JobSolver, func(ctx context.Context) { slv.RunCycle(ctx) }, jobCfg), cfg.SolverInterval},
		{scheduler.NewJob(flags.JobReclaim, func(ctx context.Context) { reclaimer.Tick(ctx) }, jobCfg), cfg.ReclaimInterval},
		{scheduler.NewJob(flags.JobInterval, func(ctx context.Context) { executor.Tick(ctx) }, jobCfg), cfg.IntervalOrderInterval},
	}

	sched := scheduler.New(logger)
	for _, j := range jobs {
		if err := sched.Every(j.interval, j.job); err != nil {
			return fmt.Errorf("schedule %s: %w", j.job.Name(), err)
		}
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: &server.Handlers{
			Events:       events,
			Switches:     switches,
			Jobs:         sched.Jobs(),
			Ledger:       ledgerClient,
			Pools:        pools,
			Optimizer:    optimizer,
			Intents:      db.Intents(),
			Orders:       db.Orders(),
			Signing:      signer != nil,
			MaxBatchSize: batcher.MaxBatchSize(),
			DevMode:      cfg.DevMode,
			Logger:       logger,
		},
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.APIAddr).Info("ops server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	sched.Start()
	logger.WithFields(logrus.Fields{
		"escrow":  cfg.EscrowAddress,
		"network": cfg.Network,
		"signing": signer != nil,
		"batch":   batcher.MaxBatchSize(),
	}).Info("solver started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-srvErr:
		logger.WithError(runErr).Error("ops server failed")
	}

	sched.Stop()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
	return runErr
}

func newLeases(cfg *config.Config, rclient *redis.Client, logger *logrus.Logger) (lease.Set, error) {
	if cfg.LeaseBackend == config.LeaseRedis {
		rs, err := lease.NewRedisSet(rclient, cfg.LeaseTTL)
		if err != nil {
			return nil, err
		}
		logger.WithField("owner", rs.Owner()).Info("leases shared through redis")
		return rs, nil
	}
	ms := lease.NewMemorySet(cfg.LeaseTTL)
	metrics.WatchLeases(ms.Len)
	return ms, nil
}
