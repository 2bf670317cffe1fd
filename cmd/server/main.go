/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sales ledger engine server. Handles
  configuration, dependency injection, job scheduling, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Configure structured logging
  3. Initialize SQLite store (runs migrations)
  4. Wire alert sinks (log always, AMQP when configured)
  5. Register the archival and close jobs on the scheduler
  6. Start HTTP server with graceful shutdown

SCHEDULED JOBS:
  daily_archive  Every working day at ARCHIVE_HOUR:ARCHIVE_MINUTE
                 (fires daily; weekend runs archive nothing)
  period_close   CLOSE_WEEKDAY at CLOSE_HOUR:CLOSE_MINUTE

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running job)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  SQLITE_DB_PATH=./data/sales.db ./server

  # Run with in-memory database
  SQLITE_DB_PATH=":memory:" ./server

SEE ALSO:
  - config/config.go: All environment knobs
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/sales-engine/alert"
	"github.com/warp/sales-engine/api"
	"github.com/warp/sales-engine/config"
	"github.com/warp/sales-engine/ledger"
	"github.com/warp/sales-engine/report"
	"github.com/warp/sales-engine/rollup"
	"github.com/warp/sales-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	// Store
	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()
	log.WithField("db", cfg.SQLiteDBPath).Info("database ready")

	// Alert sinks
	sinks := alert.Multi{alert.NewLogSink(log)}
	if cfg.AlertsEnabled() {
		amqpSink, err := alert.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			log.WithError(err).Fatal("failed to connect alert queue")
		}
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
		log.WithField("exchange", cfg.AMQPExchange).Info("alert queue connected")
	}

	// Jobs and queries
	archiver := ledger.NewArchiver(store, log)
	closer := ledger.NewPeriodCloser(store, sinks, log)
	engine := rollup.New(store)
	exporter := report.NewExporter(engine, store)

	// Scheduler
	loc := cfg.Location()
	sched := api.NewScheduler(loc, log)
	sched.Register(api.Job{
		Name:   ledger.JobDailyArchive,
		Hour:   cfg.ArchiveHour,
		Minute: cfg.ArchiveMinute,
		Run:    archiver.Run,
	})
	closeDay := cfg.CloseWeekday
	sched.Register(api.Job{
		Name:    ledger.JobPeriodClose,
		Hour:    cfg.CloseHour,
		Minute:  cfg.CloseMinute,
		Weekday: &closeDay,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := closer.Run(ctx, now)
			return err
		},
	})
	sched.Start()
	defer sched.Stop()

	// HTTP
	handler := &api.Handler{
		Store:       store,
		Archiver:    archiver,
		Closer:      closer,
		Rollup:      engine,
		Exporter:    exporter,
		Log:         log,
		Clock:       api.RealClock(),
		CloseSecret: cfg.CloseSecret,
	}
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}

	log.Info("server stopped")
}
