package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every configuration value the engine reads. Only this
// struct may be used to access configuration; no direct env, ini or
// other config source access should be made elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"dispatch"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`
	PromAddr      string `env:"PROM_ADDR"`

	QueueName              string        `env:"QUEUE_NAME" default:"dispatch:jobs"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`

	SchedulerTick     time.Duration `env:"SCHEDULER_TICK" default:"10s"`
	SchedulerBatch    int           `env:"SCHEDULER_BATCH" default:"100"`
	ExecutorWorkers   int           `env:"EXECUTOR_WORKERS" default:"4"`
	ExecutorQueueSize int           `env:"EXECUTOR_QUEUE_SIZE" default:"64"`

	ProviderDefault     string        `env:"PROVIDER_DEFAULT" default:"resend"`
	ResendAPIKey        string        `env:"RESEND_API_KEY"`
	PostmarkServerToken string        `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkBaseURL     string        `env:"POSTMARK_BASE_URL" default:"https://api.postmarkapp.com"`
	PostmarkTimeout     time.Duration `env:"POSTMARK_TIMEOUT" default:"10s"`

	HealthWindow            time.Duration `env:"HEALTH_WINDOW" default:"168h"`
	HealthBounceWatchRate   float64       `env:"HEALTH_BOUNCE_WATCH_RATE" default:"0.05"`
	HealthBouncePauseRate   float64       `env:"HEALTH_BOUNCE_PAUSE_RATE" default:"0.1"`
	HealthComplaintWatch    float64       `env:"HEALTH_COMPLAINT_WATCH_RATE" default:"0.001"`
	HealthComplaintPause    float64       `env:"HEALTH_COMPLAINT_PAUSE_RATE" default:"0.005"`
	HealthWatchGrace        time.Duration `env:"HEALTH_WATCH_GRACE" default:"24h"`
	HealthMinSample         int64         `env:"HEALTH_MIN_SAMPLE" default:"50"`
	PausedJobRequeueBackoff time.Duration `env:"PAUSED_JOB_REQUEUE_BACKOFF" default:"15m"`

	EventDedupeTTL time.Duration `env:"EVENT_DEDUPE_TTL" default:"72h"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
