package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mariogenie/genie-chat/internal/config"
	"github.com/mariogenie/genie-chat/internal/db"
	"github.com/mariogenie/genie-chat/internal/event"
	"github.com/mariogenie/genie-chat/internal/favorite"
	"github.com/mariogenie/genie-chat/internal/httpapi"
	"github.com/mariogenie/genie-chat/internal/logger"
	"github.com/mariogenie/genie-chat/internal/session"
	"github.com/mariogenie/genie-chat/internal/store/rabbitmq"
	"github.com/mariogenie/genie-chat/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No credential means no startup. Plain stderr, the logger needs cfg.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := db.Migrate(gdb, &event.Event{}, &session.Session{}, &favorite.Favorite{}); err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	if err := rds.Ping(context.Background()); err != nil {
		log.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		rds = nil
	}

	// Event notifications feed the aggregator. The app degrades to
	// cron-only reconciliation when the broker is down.
	var notifier event.Notifier
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn("rabbitmq unavailable, rollup updates deferred to reconciliation", zap.Error(err))
	} else {
		notifier = pub
		defer pub.Close()
	}

	router := httpapi.NewRouter(gdb, cfg, log, rds, notifier)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
