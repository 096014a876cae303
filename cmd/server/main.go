// Package main runs the treasury dashboard service: the snapshot poller, the
// dashboard chart builds, the HTTP API with websocket push and Prometheus
// metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"

	"treasury-charts/internal/api"
	"treasury-charts/internal/chain"
	"treasury-charts/internal/dashboard"
	"treasury-charts/internal/fixtures"
	"treasury-charts/internal/poller"
	"treasury-charts/internal/pricefeed"
	"treasury-charts/internal/storage"
	chstore "treasury-charts/internal/storage/clickhouse"
	"treasury-charts/internal/storage/memory"
	"treasury-charts/internal/storage/migrations"
	pgstore "treasury-charts/internal/storage/postgres"
	redisstore "treasury-charts/internal/storage/redis"
)

// shutdownTimeout bounds graceful shutdown after the first signal.
const shutdownTimeout = 30 * time.Second

// stores holds the storage implementations.
type stores struct {
	snapshots storage.SnapshotStore
	prices    storage.PriceStore
	cache     storage.ChartCache
}

func main() {
	loadEnvFile()

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("[server] %v", err)
	}

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	ctx := context.Background()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	table, err := fixtures.Load()
	if err != nil {
		logger.Fatalf("Failed to load reserve history: %v", err)
	}

	provider := chain.NewHTTPClient(cfg.rpcEndpoint)

	var feedOpts []pricefeed.ClientOption
	if cfg.priceAPIKey != "" {
		feedOpts = append(feedOpts, pricefeed.WithAPIKey(cfg.priceAPIKey))
	}
	prices := pricefeed.NewRecordingSource(pricefeed.RecordingOptions{
		Live:   pricefeed.NewClient(cfg.priceFeedURL, feedOpts...),
		Store:  st.prices,
		MaxAge: cfg.priceMaxAge,
		Logger: log.New(os.Stdout, "[prices] ", log.LstdFlags|log.Lshortfile),
	})

	p := poller.New(poller.Options{
		Provider: provider,
		Store:    st.snapshots,
		Interval: cfg.pollInterval,
		Logger:   log.New(os.Stdout, "[poller] ", log.LstdFlags|log.Lshortfile),
	})
	if err := p.WarmStart(ctx); err != nil {
		logger.Printf("Warm start skipped: %v", err)
	}

	dash := dashboard.New(dashboard.Options{
		Provider:    provider,
		Prices:      prices,
		Snapshots:   p,
		Table:       table,
		Store:       st.snapshots,
		Cache:       st.cache,
		RebaseRange: cfg.rebaseRange,
		Logger:      log.New(os.Stdout, "[dashboard] ", log.LstdFlags|log.Lshortfile),
	})

	srv := api.NewServer(api.Options{
		Dashboard: dash,
		Snapshots: p,
		Prices:    st.prices,
		Logger:    log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile),
	})

	var g run.Group
	g.Add(actor(ctx, p))
	g.Add(actor(ctx, dash))
	g.Add(actor(ctx, serviceFunc(func(ctx context.Context) error {
		return srv.ListenAndServe(ctx, cfg.httpAddr)
	})))
	g.Add(signalActor(ctx, logger))

	logger.Printf("Starting treasury dashboard (rpc: %s, http: %s, memory: %v)", cfg.rpcEndpoint, cfg.httpAddr, cfg.useMemory)

	err = g.Run()
	var sigErr signalError
	if err != nil && !errors.As(err, &sigErr) && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// service is a long running component of the process.
type service interface {
	Run(ctx context.Context) error
}

type serviceFunc func(ctx context.Context) error

func (f serviceFunc) Run(ctx context.Context) error { return f(ctx) }

// actor adapts a service to a run.Group member that is interrupted by
// cancelling its context.
func actor(ctx context.Context, s service) (func() error, func(error)) {
	ctx, cancel := context.WithCancelCause(ctx)
	return func() error {
			return s.Run(ctx)
		}, func(err error) {
			cancel(err)
		}
}

type signalError struct {
	sig os.Signal
}

func (e signalError) Error() string {
	return fmt.Sprintf("received signal %s", e.sig)
}

// signalActor returns on SIGINT or SIGTERM. After that, a second signal or
// a stuck shutdown exits the process.
func signalActor(ctx context.Context, logger *log.Logger) (func() error, func(error)) {
	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return func() error {
			select {
			case sig := <-sigCh:
				logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
				go func() {
					select {
					case sig := <-sigCh:
						logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
					case <-time.After(shutdownTimeout):
						logger.Printf("Graceful shutdown timed out after %v, forcing exit", shutdownTimeout)
					}
					os.Exit(1)
				}()
				return signalError{sig: sig}
			case <-ctx.Done():
				signal.Stop(sigCh)
				return ctx.Err()
			}
		}, func(error) {
			cancel()
		}
}

func createStores(ctx context.Context, cfg *config, logger *log.Logger) (*stores, func(), error) {
	st := &stores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.useMemory {
		st.snapshots = memory.NewSnapshotStore()
		st.prices = memory.NewPriceStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}

		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = chConn.Close() })

		st.snapshots = pgstore.NewSnapshotStore(pool)
		st.prices = chstore.NewPriceStore(chConn)
		logger.Println("Using PostgreSQL snapshot store and ClickHouse price store")
	}

	if cfg.redisAddr != "" {
		cache, err := redisstore.NewChartCache(ctx, redisstore.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = cache.Close() })
		st.cache = cache
		logger.Printf("Using Redis chart cache at %s", cfg.redisAddr)
	} else {
		st.cache = memory.NewChartCache()
	}

	return st, cleanup, nil
}
