package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/inkwire/dispatch/pkg/redis"
)

// Message is one job wake-up pulled from the stream. A message only
// carries the job id and routing metadata; the send job row in the
// database is the source of truth for what to execute.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
}

// MessageHandler processes one message. A nil return acks the message;
// an error leaves it pending for reclaim.
type MessageHandler func(ctx context.Context, msg *Message) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// Queue is a redis-streams work queue with consumer groups. Messages
// stuck pending past the visibility timeout are reclaimed and retried;
// messages past MaxRetries land in the dead letter stream.
type Queue struct {
	adapter redis.RedisAdapter
	config  Config
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Stats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
}

func New(adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "executors"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("executor-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// BUSYGROUP on an existing group is fine.
	_ = q.adapter.XGroupCreateMkStream(q.config.Name, q.config.ConsumerGroup, "0")

	return q, nil
}

// Publish appends a message to the stream.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
		"attempts":  0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}

	return id, nil
}

// PublishJSON publishes a JSON-encoded message.
func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, jsonData, metadata)
}

// Consume starts the consume loop. Successful handling acks the
// message; an error leaves it pending for the reclaim pass.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)

	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processNew()
			q.claimStuck()
		}
	}
}

func (q *Queue) processNew() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		q.handleMessage(q.decode(streamMsg))
	}
}

// claimStuck takes over messages another consumer read but never acked,
// so a crashed executor does not strand its jobs.
func (q *Queue) claimStuck() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var ids []string
	for _, msg := range pendingExt {
		if msg.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		ids...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		msg := q.decode(streamMsg)
		msg.Attempts++
		q.handleMessage(msg)
	}
}

func (q *Queue) handleMessage(msg *Message) {
	if msg.Attempts >= q.config.MaxRetries {
		q.moveToDeadLetter(msg)
		_ = q.ack(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		logger.Warn("message handling failed, leaving pending",
			"queue", q.config.Name, "message_id", msg.ID, "error", err)
		return
	}

	_ = q.ack(msg.ID)
}

func (q *Queue) ack(messageID string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, messageID)
}

func (q *Queue) moveToDeadLetter(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}

	_, _ = q.adapter.XAdd(q.config.Name+":dlq", values)
	logger.Error("message moved to dead letter queue",
		"queue", q.config.Name, "message_id", msg.ID, "attempts", msg.Attempts)
}

func (q *Queue) decode(streamMsg redis.StreamMessage) *Message {
	msg := &Message{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		switch k {
		case "data":
			if data, ok := v.(string); ok {
				msg.Data = []byte(data)
			}
		case "timestamp":
			if ts, ok := v.(string); ok {
				if unix, err := strconv.ParseInt(ts, 10, 64); err == nil {
					msg.Timestamp = time.Unix(unix, 0)
				}
			}
		case "attempts":
			if attempts, ok := v.(string); ok {
				msg.Attempts, _ = strconv.Atoi(attempts)
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				if val, ok := v.(string); ok {
					msg.Metadata[k[5:]] = val
				}
			}
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return msg
}

// Stop cancels the consume loop and waits for in-flight handlers.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*Stats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalMessages: total}

	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}

	return stats, nil
}
