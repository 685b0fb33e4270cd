package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/lumenpay/lumenvault/adapters/events"
	"github.com/lumenpay/lumenvault/adapters/horizon"
	"github.com/lumenpay/lumenvault/adapters/store"
	"github.com/lumenpay/lumenvault/adapters/tokenizer"
	"github.com/lumenpay/lumenvault/config"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/lumenpay/lumenvault/service"
	httptransport "github.com/lumenpay/lumenvault/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "lumenpay-auth",
		Short:         "Stellar wallet challenge-response authentication server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("LUMENPAY_CONFIG"), "path to YAML config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("lumenpay-auth failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.Level() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	var redisClient *redis.Client
	if cfg.Store.Nonces == "redis" || cfg.Store.Users == "redis" || cfg.Events.Enabled {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}
	}

	var nonces ports.NonceStore
	switch cfg.Store.Nonces {
	case "redis":
		nonces = store.NewRedisNonceStore(redisClient)
	default:
		log.Warn().Msg("using in-memory nonce store; nonces are lost on restart and not shared between instances")
		nonces = store.NewMemoryNonceStore()
	}

	var users ports.UserStore
	switch cfg.Store.Users {
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		users = store.NewPostgresUserStore(db)
	case "redis":
		users = store.NewRedisUserStore(redisClient)
	default:
		users = store.NewMemoryUserStore()
	}

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			events.NewZerologAdapter(log.Logger),
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		defer publisher.Close()
		eventPub = events.NewWatermillPublisher(publisher)
	}

	network, err := horizon.ForNetwork(cfg.Stellar.Network, cfg.Stellar.HorizonURL)
	if err != nil {
		return err
	}
	network.WithUSDCIssuer(cfg.Stellar.USDCIssuer)

	tok := tokenizer.NewJWTTokenizer([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	authService := service.NewAuthService(tok, nonces, users, eventPub).
		WithTTLs(cfg.Auth.NonceTTL, cfg.Auth.TokenTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, err := httptransport.SetupRouter(authService, httptransport.Options{
		Network:        network,
		CleanupToken:   cfg.Auth.CleanupToken,
		AuthRate:       rate.Limit(cfg.Auth.RatePerSecond),
		AuthBurst:      cfg.Auth.RateBurst,
		TrustedProxies: cfg.TrustedProxies,
		Registry:       registry,
	})
	if err != nil {
		return err
	}

	go authService.RunCleanup(ctx, cfg.Auth.CleanupInterval)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("network", cfg.Stellar.Network).Msg("server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
