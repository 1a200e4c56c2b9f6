package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/dashboard"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/gateway"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/hub"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/reconcile"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/repository"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/snapshot"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/state"
	"github.com/shubham-shewale/stock-dashboard/cmd/dashboard/internal/stream"
	"github.com/shubham-shewale/stock-dashboard/pkg/config"
	"github.com/shubham-shewale/stock-dashboard/pkg/models"
)

var (
	symbols []string
	port    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Real-time stock dashboard server",
		Long: `dashboard loads price snapshots for the tracked symbols, keeps them
current from a streaming upstream and serves the view to UI sessions over /ws.`,
		RunE: run,
	}

	rootCmd.Flags().StringSliceVarP(&symbols, "symbols", "s", nil, "Symbols to track (overrides dashboard.symbols)")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "Listen address (overrides app.port)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if len(symbols) > 0 {
		cfg.Dashboard.Symbols = models.NormalizeSymbols(symbols)
	}
	if port != "" {
		cfg.App.Port = port
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := snapshot.NewClient(cfg.Provider.APIKey,
		snapshot.WithBaseURL(cfg.Provider.BaseURL),
		snapshot.WithTimeout(cfg.Provider.Timeout),
		snapshot.WithRequestsPerMinute(cfg.Provider.RequestsPerMinute),
	)
	fetcher := snapshot.NewFetcher(logger, provider,
		snapshot.WithHoldings(cfg.HoldingsBySymbol()),
		snapshot.WithConcurrency(cfg.Provider.MaxConcurrency),
	)

	var stocks snapshot.StockFetcher = fetcher
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache := repository.NewRedisStore(rdb)
		defer cache.Close()
		stocks = &snapshot.Cached{Next: fetcher, Cache: cache, TTL: cfg.Redis.TTL, Logger: logger}
		logger.Info("Snapshot cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	dialer, err := newDialer(cfg)
	if err != nil {
		return err
	}

	store := state.New(cfg.Dashboard.Currency, logger)
	streamer := stream.NewClient(logger, dialer, func(tick models.Tick) {
		reconcile.ApplyTick(store, tick)
	}, stream.Options{
		Heartbeat:   cfg.Stream.Heartbeat,
		Backoff:     stream.Backoff{Base: cfg.Stream.ReconnectBase, Max: cfg.Stream.ReconnectMax},
		MaxAttempts: cfg.Stream.MaxAttempts,
	})

	dash := dashboard.New(logger, store, stocks, streamer, dashboard.Options{
		Symbols:       cfg.Dashboard.Symbols,
		DefaultSymbol: cfg.Dashboard.DefaultSymbol,
		TabSeed:       cfg.Dashboard.TabSeed,
		PollInterval:  cfg.Poll.Interval,
		PollTimeout:   cfg.Poll.Timeout,
	})

	// Dependency Injection: Hub depends on the dashboard and market interfaces
	wsHub := hub.NewHub(dash, fetcher, logger)

	health := func() gateway.Health {
		return gateway.Health{Stream: streamer.State().String(), Loading: dash.Loading()}
	}
	srv := &http.Server{Addr: cfg.App.Port, Handler: gateway.NewHandler(wsHub, health, logger)}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port), zap.Strings("symbols", cfg.Dashboard.Symbols))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	go dash.Start(ctx)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	wsHub.Close()
	dash.Stop()
	logger.Info("Shutdown Complete")
	return nil
}

func newDialer(cfg *config.Config) (stream.Dialer, error) {
	switch cfg.Stream.Source {
	case "kafka":
		return &stream.KafkaDialer{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, nil
	default:
		u, err := url.Parse(cfg.Stream.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid stream url %q: %w", cfg.Stream.URL, err)
		}
		if key := strings.TrimSpace(cfg.Provider.APIKey); key != "" {
			q := u.Query()
			q.Set("apikey", key)
			u.RawQuery = q.Encode()
		}
		return &stream.WebsocketDialer{
			URL:         u.String(),
			Dialer:      &websocket.Dialer{HandshakeTimeout: cfg.Stream.HandshakeTimeout},
			ReadTimeout: 2 * cfg.Stream.Heartbeat,
		}, nil
	}
}
