package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/queue"
	"github.com/inkwire/dispatch/pkg/logger"
)

var (
	ErrPreflightBlocked = errors.New("preflight reported blockers")
	ErrNothingToRetry   = errors.New("no failed deliveries to retry")
	ErrNotFound         = errors.New("not found")
)

type SendJobRepository interface {
	CreateOrGet(ctx context.Context, job *model.SendJob) (*model.SendJob, bool, error)
	GetByID(ctx context.Context, id int64) (*model.SendJob, error)
	Cancel(ctx context.Context, id int64) (*model.SendJob, error)
	LatestCompleted(ctx context.Context, newsletterID int64) (*model.SendJob, error)
	List(ctx context.Context, filter *model.SendJobFilter) ([]*model.SendJob, error)
}

type DeliveryRepository interface {
	ListFailedForJob(ctx context.Context, jobID int64) ([]*model.Delivery, error)
	List(ctx context.Context, filter *model.DeliveryFilter) ([]*model.Delivery, error)
}

// jobSignal is the queue payload waking an executor for one job.
type jobSignal struct {
	JobID int64 `json:"job_id"`
}

// SendJobService owns the submit, cancel and retry entry points of the
// job ledger. Submitting runs a fresh preflight; a blocked preflight
// never creates a job.
type SendJobService struct {
	jobs       SendJobRepository
	deliveries DeliveryRepository
	preflight  *PreflightService
	queue      *queue.Queue
}

func NewSendJobService(
	jobs SendJobRepository,
	deliveries DeliveryRepository,
	preflight *PreflightService,
	q *queue.Queue,
) *SendJobService {
	return &SendJobService{
		jobs:       jobs,
		deliveries: deliveries,
		preflight:  preflight,
		queue:      q,
	}
}

// SubmitResult carries the accepted (or replayed) job together with the
// preflight report it was admitted under.
type SubmitResult struct {
	Job     *model.SendJob  `json:"job"`
	Report  *model.QAReport `json:"report"`
	Created bool            `json:"created"`
}

// Submit runs preflight and, when clean, records the job. A duplicate
// idempotency key replays the original job instead of creating another;
// the caller cannot tell a replay from a slow first submit, which is
// the point.
func (s *SendJobService) Submit(ctx context.Context, req model.SubmitRequest) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	newsletter, err := s.preflight.newsletters.GetByID(ctx, req.NewsletterID)
	if err != nil {
		return nil, err
	}

	report, err := s.evaluateForSubmit(ctx, req)
	if err != nil {
		return nil, err
	}
	if !report.CanSend {
		return &SubmitResult{Report: report}, ErrPreflightBlocked
	}

	scheduledFor := time.Now()
	if req.ScheduledFor != nil {
		scheduledFor = *req.ScheduledFor
	}

	job := &model.SendJob{
		NewsletterID:   req.NewsletterID,
		ClientID:       newsletter.ClientID,
		Provider:       req.Provider,
		AudienceTag:    req.AudienceTag,
		IdempotencyKey: req.IdempotencyKey,
		Status:         model.SendJobStatusQueued,
		Recipients:     req.Recipients,
		ScheduledFor:   scheduledFor,
	}

	created, isNew, err := s.jobs.CreateOrGet(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create send job: %w", err)
	}

	if isNew && !created.ScheduledFor.After(time.Now()) {
		s.wake(ctx, created.ID)
	}

	logger.Info("send job submitted",
		"job_id", created.ID,
		"newsletter_id", created.NewsletterID,
		"provider", created.Provider,
		"created", isNew)

	return &SubmitResult{Job: created, Report: report, Created: isNew}, nil
}

// Cancel withdraws a queued job. Jobs already claimed by an executor
// cannot be pulled back.
func (s *SendJobService) Cancel(ctx context.Context, jobID int64) (*model.SendJob, error) {
	return s.jobs.Cancel(ctx, jobID)
}

// RetryFailed submits a new job covering only the failed and bounced
// recipients of the newsletter's latest completed job. The original job
// and its deliveries are left untouched; a retry is a new chapter, not
// an edit of history. Recipients who unsubscribed since the original
// send are dropped during execution.
func (s *SendJobService) RetryFailed(ctx context.Context, newsletterID int64) (*SubmitResult, error) {
	source, err := s.jobs.LatestCompleted(ctx, newsletterID)
	if err != nil {
		return nil, err
	}

	failed, err := s.deliveries.ListFailedForJob(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	if len(failed) == 0 {
		return nil, ErrNothingToRetry
	}

	emails := make([]string, len(failed))
	for i, d := range failed {
		emails[i] = d.Email
	}

	// The derived key makes retrying the same job idempotent too.
	return s.Submit(ctx, model.SubmitRequest{
		NewsletterID:   newsletterID,
		Provider:       source.Provider,
		AudienceTag:    source.AudienceTag,
		IdempotencyKey: fmt.Sprintf("retry:%d", source.ID),
		Recipients:     emails,
	})
}

func (s *SendJobService) GetJob(ctx context.Context, jobID int64) (*model.SendJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

func (s *SendJobService) ListJobs(ctx context.Context, filter *model.SendJobFilter) ([]*model.SendJob, error) {
	return s.jobs.List(ctx, filter)
}

// evaluateForSubmit runs the standard preflight, except that an
// explicit recipient list (a retry) skips the audience size check
// against the tag; the list itself is the audience.
func (s *SendJobService) evaluateForSubmit(ctx context.Context, req model.SubmitRequest) (*model.QAReport, error) {
	report, err := s.preflight.Evaluate(ctx, PreflightRequest{
		NewsletterID: req.NewsletterID,
		Provider:     req.Provider,
		AudienceTag:  req.AudienceTag,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		return nil, err
	}

	if len(req.Recipients) == 0 {
		return report, nil
	}

	filtered := report.Blockers[:0]
	for _, b := range report.Blockers {
		if b.Code != model.BlockerNoRecipients {
			filtered = append(filtered, b)
		}
	}
	report.Blockers = filtered
	report.RecipientsCount = len(req.Recipients)
	report.CanSend = len(report.Blockers) == 0
	return report, nil
}

// wake nudges the executor; a missed wake-up is harmless because the
// scheduler sweep publishes due jobs on every tick.
func (s *SendJobService) wake(ctx context.Context, jobID int64) {
	if s.queue == nil {
		return
	}
	if _, err := s.queue.PublishJSON(ctx, jobSignal{JobID: jobID}, map[string]string{"reason": "submit"}); err != nil {
		logger.Warn("failed to publish job wake-up", "job_id", jobID, "error", err)
	}
}
