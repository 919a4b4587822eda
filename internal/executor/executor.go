package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/inkwire/dispatch/internal/config"
	"github.com/inkwire/dispatch/internal/queue"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/inkwire/dispatch/pkg/redis"
	"github.com/inkwire/dispatch/pkg/worker"
)

const ProcessingTimeout = time.Second * 30
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// Service wires the executor together: a redis-streams consumer for
// wake-ups, a database sweep for scheduled jobs, and a worker pool
// running the actual executions. The sweep makes the stream advisory;
// a lost wake-up only delays a job until the next tick.
type Service struct {
	adapter  redis.RedisAdapter
	queue    *queue.Queue
	executor *JobExecutor
	jobs     SendJobRepository
	metrics  *ServiceMetrics
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	worker   *worker.WorkerManager
}

func NewService(adapter redis.RedisAdapter, executor *JobExecutor, jobs SendJobRepository) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.Get()
	return &Service{
		adapter:  adapter,
		executor: executor,
		jobs:     jobs,
		metrics:  NewServiceMetrics(),
		ctx:      ctx,
		cancel:   cancel,
		worker:   worker.NewWorkerManager(cfg.ExecutorQueueSize, cfg.ExecutorWorkers, nil),
	}
}

type jobSignal struct {
	JobID int64 `json:"job_id"`
}

type executionJob struct {
	jobID      int64
	resultChan chan error
	ctx        context.Context
}

func (s *Service) Start() error {
	logger.Info("starting executor service...")

	cfg := config.Get()

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	q, err := queue.New(s.adapter, queue.Config{
		Name:              cfg.QueueName,
		ConsumerGroup:     cfg.QueueConsumerGroup,
		ConsumerName:      cfg.QueueConsumerName,
		MaxRetries:        cfg.QueueMaxRetries,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		PollInterval:      cfg.QueuePollInterval,
		BatchSize:         cfg.QueueBatchSize,
		MaxLen:            cfg.QueueMaxLen,
		EnableDLQ:         cfg.QueueEnableDLQ,
	})
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	if err := q.Consume(s.messageHandler); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	s.queue = q

	s.wg.Add(3)
	go s.scheduler(cfg.SchedulerTick, cfg.SchedulerBatch)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("executor service started", "workers", cfg.ExecutorWorkers, "tick", cfg.SchedulerTick)
	return nil
}

// scheduler sweeps the ledger for due jobs. Execution is still guarded
// by the claim, so running the sweep next to stream wake-ups at worst
// loses a race and does nothing.
func (s *Service) scheduler(tick time.Duration, batch int) {
	defer s.wg.Done()

	if tick <= 0 {
		tick = 10 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepDueJobs(batch)
		}
	}
}

func (s *Service) sweepDueJobs(batch int) {
	due, err := s.jobs.DueJobs(s.ctx, time.Now(), batch)
	if err != nil {
		logger.Error("due job sweep failed", "error", err)
		return
	}

	for _, job := range due {
		jobCtx, cancel := context.WithTimeout(s.ctx, ProcessingTimeout)
		if err := s.executor.Execute(jobCtx, job.ID); err != nil {
			logger.Error("scheduled execution failed", "job_id", job.ID, "error", err)
			s.metrics.RecordFailure()
		}
		cancel()
	}
}

// messageHandler hands a wake-up to the worker pool and blocks for the
// outcome so the queue ack tracks actual completion.
func (s *Service) messageHandler(ctx context.Context, msg *queue.Message) error {
	var signal jobSignal
	if err := json.Unmarshal(msg.Data, &signal); err != nil {
		logger.Error("malformed job signal, dropping", "message_id", msg.ID, "error", err)
		return nil
	}

	resultChan := make(chan error, 1)
	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	s.worker.Enqueue(&executionJob{
		jobID:      signal.JobID,
		resultChan: resultChan,
		ctx:        msgCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to execute job: %w", msgCtx.Err())
	}
}

func (s *Service) workerHandler(workerIndex int, job interface{}) {
	exec, ok := job.(*executionJob)
	if !ok {
		logger.Error("unexpected job type in worker pool", "worker", workerIndex)
		return
	}

	start := time.Now()
	err := s.executor.Execute(exec.ctx, exec.jobID)
	if err != nil {
		s.metrics.RecordFailure()
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}

	select {
	case exec.resultChan <- err:
	default:
	}
}

func (s *Service) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("executor metrics",
		"total_executed", stats["total_executed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	if s.queue != nil {
		if qStats, err := s.queue.GetStats(); err == nil {
			logger.Info("queue stats", "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
		}
	}
}

func (s *Service) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed: redis connection error", "error", err)
		return
	}

	if s.queue != nil {
		if stats, err := s.queue.GetStats(); err == nil && stats.PendingMessages > 10000 {
			logger.Warn("health check warning: queue has high lag", "pending_messages", stats.PendingMessages)
		}
	}
}

// Stop drains the consumer and worker pool.
func (s *Service) Stop() {
	logger.Info("shutting down executor service...")

	s.cancel()

	if s.queue != nil {
		if err := s.queue.Stop(ShutdownTimeout); err != nil {
			logger.Error("error stopping queue", "error", err)
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("executor service stopped")
}
