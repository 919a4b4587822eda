package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/inkwire/dispatch/internal/config"
	"github.com/inkwire/dispatch/internal/handlers"
	"github.com/inkwire/dispatch/internal/providers"
	"github.com/inkwire/dispatch/internal/queue"
	"github.com/inkwire/dispatch/internal/repository"
	"github.com/inkwire/dispatch/internal/services"
	xhttp "github.com/inkwire/dispatch/pkg/http"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/inkwire/dispatch/pkg/pg"
	"github.com/inkwire/dispatch/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	registry := providers.NewRegistry(
		providers.NewResendAdapter(config.Get().ResendAPIKey),
		providers.NewPostmarkAdapter(providers.PostmarkConfig{
			ServerToken: config.Get().PostmarkServerToken,
			BaseURL:     config.Get().PostmarkBaseURL,
			Timeout:     config.Get().PostmarkTimeout,
		}),
		providers.NewExportAdapter(),
	)

	newsletterRepo := repository.NewNewsletterRepository(db)
	contactRepo := repository.NewContactRepository(db)
	identityRepo := repository.NewSendingIdentityRepository(db)
	jobRepo := repository.NewSendJobRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// services
	preflightService := services.NewPreflightService(newsletterRepo, contactRepo, identityRepo, registry)
	jobService := services.NewSendJobService(jobRepo, deliveryRepo, preflightService, q)
	deliveryService := services.NewDeliveryService(deliveryRepo)
	healthService := services.NewHealthService(identityRepo, deliveryRepo, eventRepo, services.HealthThresholds{
		Window:         config.Get().HealthWindow,
		BounceWatch:    config.Get().HealthBounceWatchRate,
		BouncePause:    config.Get().HealthBouncePauseRate,
		ComplaintWatch: config.Get().HealthComplaintWatch,
		ComplaintPause: config.Get().HealthComplaintPause,
		WatchGrace:     config.Get().HealthWatchGrace,
		MinSample:      config.Get().HealthMinSample,
	})
	eventService := services.NewEventService(
		eventRepo, deliveryRepo, jobRepo, contactRepo, healthService,
		redisAdap, config.Get().EventDedupeTTL)

	// v1 handlers
	newsletterHandler := handlers.NewNewsletterHandler(preflightService, jobService, deliveryService)
	jobHandler := handlers.NewJobHandler(jobService)
	webhookHandler := handlers.NewWebhookHandler(eventService)
	identityHandler := handlers.NewIdentityHandler(healthService)
	healthHandler := handlers.NewHealthHandler()

	g := s.Router.Group("/api/v1")
	handlers.RegisterNewsletterRoutes(g, newsletterHandler)
	handlers.RegisterJobRoutes(g, jobHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterIdentityRoutes(g, identityHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
