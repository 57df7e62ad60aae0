package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticket-ledger/config"
	"ticket-ledger/internal/chain"
	"ticket-ledger/internal/handlers"
	"ticket-ledger/internal/journal"
	"ticket-ledger/internal/notify"
	"ticket-ledger/internal/services"
	"ticket-ledger/logger"
	"ticket-ledger/models"
	"ticket-ledger/monitoring"
	"ticket-ledger/security"
	"ticket-ledger/utils"
)

// Start wires the ledger, its event sinks and the HTTP API, and serves
// until SIGINT or SIGTERM.
func Start(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.LogLevel, !cfg.IsDevelopment()); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	roles, err := parseRoles(cfg)
	if err != nil {
		return err
	}

	// Sinks
	redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	stream := notify.NewStream(redisClient, cfg.EventStream, cfg.EventStreamMaxLen)

	jrnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jrnl.Close()
	logger.Infof(ctx, "journal %s opened, run %s, head %s", cfg.JournalPath, jrnl.Run(), jrnl.Head())

	sinks := []services.Sink{jrnl, stream}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pn := notify.NewPubNubPublisher(notify.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})
		sinks = append(sinks, notify.NewRealtime(pn, cfg.PubNubChannel))
	} else {
		logger.Info(ctx, "pubnub keys not set, realtime notifications disabled")
	}

	// Sinks outlive the signal context so the queue can drain on shutdown.
	dispatcher := services.NewDispatcher(cfg.DispatchBuffer, sinks...)
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	// Ledger
	bank := chain.NewBank()
	assets := chain.NewRegistry()
	var devAsset *chain.MemoryToken
	if cfg.IsDevelopment() && cfg.DevAssetAddress != "" {
		addr, err := models.ParseAddress(cfg.DevAssetAddress)
		if err != nil {
			return fmt.Errorf("%s: %w", config.DevAssetAddress, err)
		}
		devAsset = chain.NewMemoryToken(chain.ReturnsBool)
		if err := assets.Register(addr, devAsset); err != nil {
			return err
		}
	}

	engine, err := services.NewEngine(services.EngineConfig{
		Address:        roles.engine,
		Admin:          roles.admin,
		FeeAdmin:       roles.feeAdmin,
		FeeRecipient:   roles.feeRecipient,
		ProtocolFeeBps: cfg.ProtocolFeeBps,
	}, bank, assets,
		services.WithObserver(monitoring.Recorder{}),
		services.WithDispatcher(dispatcher),
	)
	if err != nil {
		return err
	}

	if cfg.EnableMetrics {
		monitoring.NewMonitor(engine, cfg.MetricsInterval).Start(ctx)
	}

	// HTTP
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(handlers.CorrelationID())
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)
	e.Use(limiter.Middleware())
	e.Use(limiter.AntiBotMiddleware())

	handlers.Register(e, handlers.NewHandler(engine, handlers.Options{
		Bank:         bank,
		AdminKeyHash: cfg.AdminKeyHash,
		Development:  cfg.IsDevelopment(),
		Journal:      jrnl,
		Stream:       stream,
		DevAsset:     devAsset,
	}))
	if cfg.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
	e.GET("/health/redis", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(c.Request().Context(), redisClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof(ctx, "ticket ledger listening on %s (engine %s)", srv.Addr, engine.Address())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutting down")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(shutdownCtx, "server shutdown: %v", err)
	}
	return nil
}

type ledgerRoles struct {
	engine, admin, feeAdmin, feeRecipient models.Address
}

func parseRoles(cfg *config.Config) (ledgerRoles, error) {
	var (
		r   ledgerRoles
		err error
	)
	fields := []struct {
		key string
		raw string
		dst *models.Address
	}{
		{config.EngineAddress, cfg.EngineAddress, &r.engine},
		{config.AdminAddress, cfg.AdminAddress, &r.admin},
		{config.FeeAdminAddress, cfg.FeeAdminAddress, &r.feeAdmin},
		{config.FeeRecipientAddress, cfg.FeeRecipientAddress, &r.feeRecipient},
	}
	for _, f := range fields {
		if *f.dst, err = models.ParseAddress(f.raw); err != nil {
			return r, fmt.Errorf("%s: %w", f.key, err)
		}
	}
	return r, nil
}
