package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/ai"
	"github.com/suPer8Hu/support-desk/internal/chat"
	"github.com/suPer8Hu/support-desk/internal/config"
	"github.com/suPer8Hu/support-desk/internal/db"
	"github.com/suPer8Hu/support-desk/internal/escalation"
	"github.com/suPer8Hu/support-desk/internal/httpapi"
	"github.com/suPer8Hu/support-desk/internal/httpapi/handlers"
	"github.com/suPer8Hu/support-desk/internal/logger"
	"github.com/suPer8Hu/support-desk/internal/realtime"
	"github.com/suPer8Hu/support-desk/internal/sentiment"
	"github.com/suPer8Hu/support-desk/internal/store/rabbitmq"
	"github.com/suPer8Hu/support-desk/internal/store/redisstore"
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Text oracle. A provider that cannot be built leaves the bot unavailable,
	// which routes every customer message to staff.
	provider, err := ai.NewRegistryFromConfig(cfg).Get(ctx, cfg.AIProvider)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.AIProvider).Msg("text oracle unavailable")
		provider = nil
	}
	responder := chat.NewResponseGenerator(provider, chat.ResponderConfig{
		ContextTurns: cfg.BotContextTurns,
		HistoryLimit: cfg.BotHistoryLimit,
		Timeout:      cfg.BotTimeout,
	}, log)

	kw := chat.DefaultKeywords()
	if cfg.EscalationKeywordsFile != "" {
		if kw, err = chat.LoadKeywords(cfg.EscalationKeywordsFile); err != nil {
			log.Fatal().Err(err).Str("path", cfg.EscalationKeywordsFile).Msg("failed to load escalation keywords")
		}
	}

	var classifier sentiment.Classifier = sentiment.NewLexicon(kw.CriticalPhrases)
	if hc := sentiment.NewHTTPClassifier(cfg.SentimentURL, cfg.SentimentTimeout); hc != nil {
		classifier = hc
	}
	emotions := sentiment.NewSafe(classifier, cfg.SentimentTimeout, log)

	policy, err := chat.NewPolicy(kw, emotions, responder.Available, cfg.NegativeSentimentThreshold)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build escalation policy")
	}

	store := chat.NewMemoryStore(cfg.DedupWindow, cfg.DedupCapacity, log)
	hub := realtime.NewHub(log)
	router := chat.NewRouter(store, policy, responder, hub, chat.RouterOptions{
		TypingDelayPerChar: cfg.TypingDelayPerChar,
		TypingDelayMax:     cfg.TypingDelayMax,
		CancelBotOnHandoff: cfg.CancelBotOnHandoff,
		WelcomeEnabled:     cfg.WelcomeEnabled,
		WelcomeDelay:       cfg.WelcomeDelay,
	}, log)

	h := handlers.NewHandler(router, cfg.ServiceName, log)

	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		archive := redisstore.NewTranscriptArchive(rdb, cfg.TranscriptTTL)
		router.SetArchiver(archive)
		h.Transcripts = archive
	}

	var repo *escalation.Repo
	if cfg.DBDSN != "" {
		gdb, err := db.Connect(cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect database")
		}
		repo = escalation.NewRepo(gdb)
		if err := repo.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate escalation tickets")
		}
		h.Tickets = repo
	}

	switch {
	case cfg.RabbitURL != "":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect rabbitmq")
		}
		defer pub.Close()
		router.SetNotifier(escalation.NewQueueNotifier(pub))
	case repo != nil:
		router.SetNotifier(escalation.NewRepoNotifier(repo, log))
	}

	gateway := realtime.NewGateway(hub, router, cfg.JWTSecret, cfg.AllowedOrigins, log)
	engine := httpapi.NewRouter(cfg, h, gateway, log)
	server := httpapi.NewServer(cfg.Addr(), engine, cfg.ShutdownTimeout, log)

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("ai_provider", cfg.AIProvider).
		Bool("bot_available", responder.Available()).
		Msg("starting support server")

	runErr := server.Run(ctx)
	drain(router, cfg.ShutdownTimeout, log)
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("server stopped with error")
	}
	log.Info().Msg("server exited cleanly")
}

// drain waits for in-flight bot replies and notifications, bounded by timeout.
func drain(router *chat.Router, timeout time.Duration, log zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		router.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("gave up waiting for background work")
	}
}
