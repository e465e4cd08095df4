package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mariogenie/genie-chat/internal/config"
	"github.com/mariogenie/genie-chat/internal/db"
	"github.com/mariogenie/genie-chat/internal/event"
	"github.com/mariogenie/genie-chat/internal/logger"
	"github.com/mariogenie/genie-chat/internal/session"
	"github.com/mariogenie/genie-chat/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
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

	events := event.NewRepo(gdb)
	sessions := session.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial failed", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel failed", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatal("queue declare failed", zap.Error(err))
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos failed", zap.Error(err))
	}

	// Unique consumer tag so parallel aggregators are tellable apart in the
	// broker's management UI.
	consumerTag := "aggregator-" + uuid.NewString()
	msgs, err := ch.Consume(cfg.RabbitQueue, consumerTag, false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic full reconciliation: the rollup is a cache of the log, the
	// sweep repairs anything missed notifications left stale.
	cr := cron.New()
	if _, err := cr.AddFunc(cfg.ReconcileSpec, func() {
		start := time.Now()
		n, err := sessions.Reconcile(ctx)
		if err != nil {
			log.Error("reconciliation sweep failed", zap.Error(err))
			return
		}
		log.Info("reconciliation sweep done",
			zap.Int("sessions", n),
			zap.Duration("took", time.Since(start)))
	}); err != nil {
		log.Fatal("bad reconcile cron spec", zap.String("spec", cfg.ReconcileSpec), zap.Error(err))
	}
	cr.Start()
	defer cr.Stop()

	log.Info("aggregator started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency),
		zap.String("reconcile", cfg.ReconcileSpec))

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				handle(ctx, log.With(zap.Int("worker", workerID)), events, sessions, d)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("aggregator shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				// the broker closed the channel; exit non-zero so the
				// supervisor restarts us with a fresh connection
				close(deliveries)
				wg.Wait()
				log.Fatal("delivery channel closed by broker")
				return
			}
			deliveries <- d
		}
	}
}

// handle applies one logged event to the session rollup. Poison messages
// are nacked without requeue and land in the DLQ; transient failures
// (DB hiccups) are also nacked since the cron sweep reconverges the
// rollup regardless.
func handle(ctx context.Context, log *zap.Logger, events *event.Repo, sessions *session.Repo, d amqp.Delivery) {
	var m rabbitmq.EventMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.EventID == 0 {
		log.Warn("bad message", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	e, err := events.GetByID(ctx, m.EventID)
	if err != nil {
		log.Warn("event lookup failed", zap.Uint64("event_id", m.EventID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	// Feedback revisions rewrite the existing event row, so a per-event
	// increment would double count on the second notification. Reconcile
	// just that session instead; redeliveries of other types too.
	var applyErr error
	if e.EventType == event.TypeFeedback || d.Redelivered {
		applyErr = reconcileOne(ctx, sessions, e)
	} else {
		applyErr = sessions.Apply(ctx, e)
	}
	if applyErr != nil {
		log.Error("rollup apply failed", zap.Uint64("event_id", m.EventID), zap.Error(applyErr))
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Warn("ack failed", zap.Uint64("event_id", m.EventID), zap.Error(err))
	}
}

func reconcileOne(ctx context.Context, sessions *session.Repo, e *event.Event) error {
	if e.SessionID == nil || *e.SessionID == "" {
		return nil
	}
	return sessions.ReconcileSession(ctx, *e.SessionID)
}
