package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/config"
	"github.com/suPer8Hu/support-desk/internal/db"
	"github.com/suPer8Hu/support-desk/internal/escalation"
	"github.com/suPer8Hu/support-desk/internal/logger"
	"github.com/suPer8Hu/support-desk/internal/metrics"
	"github.com/suPer8Hu/support-desk/internal/store/rabbitmq"
)

const (
	maxRetries = 5
	retryDelay = 5 * time.Second
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	log := logger.New(cfg).With().Str("component", "worker").Logger()

	if cfg.RabbitURL == "" || cfg.DBDSN == "" {
		log.Fatal().Msg("worker requires RABBIT_URL and DB_DSN")
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	repo := escalation.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	handler := escalation.NewHandler(repo, log)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatal().Err(err).Msg("queue declare")
	}

	// retries are republished on their own channel
	pubCh, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publish channel")
	}
	defer pubCh.Close()
	retrier := rabbitmq.NewPublisherOnChannel(pubCh, cfg.RabbitQueue)

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With().Int("worker", workerID).Logger()
			for d := range jobs {
				handleDelivery(ctx, handler, retrier, d, wlog)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error().Msg("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// handleDelivery persists one escalation. Malformed events and events past
// maxRetries are dead-lettered; transient failures go to the retry queue.
func handleDelivery(ctx context.Context, h *escalation.Handler, retrier *rabbitmq.Publisher, d amqp.Delivery, log zerolog.Logger) {
	start := time.Now()
	t, err := h.HandleDelivery(ctx, d.Body)
	if err == nil {
		metrics.EscalationJobs.WithLabelValues("persisted").Inc()
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Str("ticket_id", t.ID).Msg("ack failed")
		}
		if cost := time.Since(start); cost > 500*time.Millisecond {
			log.Warn().Str("ticket_id", t.ID).Dur("cost", cost).Msg("slow escalation job")
		}
		return
	}

	if errors.Is(err, escalation.ErrBadEvent) {
		metrics.EscalationJobs.WithLabelValues("rejected").Inc()
		log.Error().Err(err).Str("message_id", d.MessageId).Msg("bad escalation event")
		_ = d.Nack(false, false)
		return
	}

	attempt := rabbitmq.RetryCount(d.Headers)
	if attempt >= maxRetries {
		metrics.EscalationJobs.WithLabelValues("dead_lettered").Inc()
		log.Error().Err(err).Str("message_id", d.MessageId).Int("attempts", attempt).Msg("escalation job exhausted retries")
		_ = d.Nack(false, false)
		return
	}

	if rerr := retrier.Retry(ctx, d, retryDelay); rerr != nil {
		// requeue in place rather than lose the event
		log.Error().Err(rerr).Str("message_id", d.MessageId).Msg("retry publish failed")
		_ = d.Nack(false, true)
		return
	}
	metrics.EscalationJobs.WithLabelValues("retried").Inc()
	log.Warn().Err(err).Str("message_id", d.MessageId).Int("attempt", attempt+1).Msg("escalation job failed, retrying")
	_ = d.Ack(false)
}
