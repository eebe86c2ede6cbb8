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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"attendance-backend/admission"
	"attendance-backend/config"
	"attendance-backend/handlers"
	"attendance-backend/lifecycle"
	"attendance-backend/metrics"
	"attendance-backend/notify"
	"attendance-backend/store"
)

const (
	migrateTimeout  = time.Minute
	shutdownTimeout = 15 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	backend, pinger, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	records := store.WithTimeout(backend, cfg.StoreTimeout)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := metrics.NewPrometheusSink(registry, logger)

	dispatcher, closeSenders, err := buildDispatcher(cfg, sink, logger)
	if err != nil {
		return err
	}
	defer closeSenders()
	dispatcher.Start()

	manager := lifecycle.NewManager(records, logger, lifecycle.WithLocation(loc))
	engine := admission.NewEngine(records, manager, logger,
		admission.WithNotifier(dispatcher),
		admission.WithMetrics(sink),
		admission.WithLocation(loc),
	)

	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		Checkin:        handlers.NewCheckinHandler(engine, manager, logger),
		Events:         handlers.NewEventHandler(manager, logger),
		Attendance:     handlers.NewAttendanceHandler(engine, logger),
		Health:         handlers.NewHealthHandler(pinger),
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins,
		AuthSecret:     cfg.AuthJWTSecret,
		MetricsPath:    cfg.MetricsPath,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
			zap.String("reporting_tz", loc.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
	return nil
}

// openStore returns the configured record store together with its health
// check and a cleanup func.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.RecordStore, handlers.Pinger, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store; records are lost on restart")
		mem := store.NewMemory()
		return mem, mem, func() {}, nil
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, migrateTimeout)
		defer cancel()

		pool, err := store.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("connected to database")

		pg := store.NewPostgres(pool, logger)
		if err := pg.Migrate(connectCtx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pg, pg, pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// buildDispatcher wires a sender for every configured channel. The returned
// func releases broker and cache connections.
func buildDispatcher(cfg config.Config, sink metrics.Sink, logger *zap.Logger) (*notify.Dispatcher, func(), error) {
	var senders []notify.Sender
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.EmailEnabled() {
		senders = append(senders, notify.NewEmailSender(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		}))
	}
	if cfg.SMSEnabled() {
		senders = append(senders, notify.NewSMSSender(notify.SMSConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioPhoneNumber,
		}))
	}
	if cfg.AMQPURL != "" {
		publisher := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err := publisher.Open(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open amqp publisher: %w", err)
		}
		senders = append(senders, publisher)
		closers = append(closers, publisher.Close)
	}

	var guard notify.Guard
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		guard = notify.NewRedisGuard(client, 0)
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", zap.Error(err))
			}
		})
	}

	if len(senders) == 0 {
		logger.Warn("no notification channels configured")
	}
	for _, s := range senders {
		logger.Info("notification channel enabled", zap.String("channel", s.Channel()))
	}

	d := notify.NewDispatcher(notify.Config{
		Senders:    senders,
		Guard:      guard,
		BufferSize: cfg.NotifyBuffer,
		Timeout:    cfg.NotifyTimeout,
		Metrics:    sink,
		Logger:     logger,
	})
	return d, closeAll, nil
}
