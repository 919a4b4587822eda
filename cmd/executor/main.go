package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/inkwire/dispatch/internal/config"
	"github.com/inkwire/dispatch/internal/executor"
	"github.com/inkwire/dispatch/internal/providers"
	"github.com/inkwire/dispatch/internal/repository"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/inkwire/dispatch/pkg/pg"
	"github.com/inkwire/dispatch/pkg/prom"
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

	jobExecutor := executor.NewJobExecutor(
		jobRepo, deliveryRepo, newsletterRepo, contactRepo, identityRepo,
		registry, config.Get().PausedJobRequeueBackoff)

	service := executor.NewService(redisAdap, jobExecutor, jobRepo)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	promAddr := config.Get().PromAddr
	if promAddr == "" {
		promAddr = ":9100"
	}
	go func() {
		prom.ListenAndServer(promAddr, "/metrics")
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := service.Start(); err != nil {
			logger.Error("failed to start executor", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
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
