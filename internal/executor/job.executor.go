package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/providers"
	"github.com/inkwire/dispatch/internal/repository"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/inkwire/dispatch/pkg/prom"
)

type SendJobRepository interface {
	GetByID(ctx context.Context, id int64) (*model.SendJob, error)
	Claim(ctx context.Context, id int64, now time.Time) (bool, error)
	Complete(ctx context.Context, id int64, now time.Time) error
	Fail(ctx context.Context, id int64, reason string, now time.Time) error
	Requeue(ctx context.Context, id int64, next time.Time, reason string) error
	DueJobs(ctx context.Context, now time.Time, limit int) ([]*model.SendJob, error)
}

type DeliveryRepository interface {
	CreateBatch(ctx context.Context, deliveries []*model.Delivery) ([]*model.Delivery, error)
	MarkAccepted(ctx context.Context, id int64, messageID string, now time.Time) error
	MarkRejected(ctx context.Context, id int64, reason string) error
}

type NewsletterRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Newsletter, error)
}

type ContactRepository interface {
	ResolveAudience(ctx context.Context, clientID int64, tag string) ([]*model.Contact, error)
	ResolveEmails(ctx context.Context, clientID int64, emails []string) ([]*model.Contact, error)
}

type SendingIdentityRepository interface {
	GetByClient(ctx context.Context, clientID int64) (*model.SendingIdentity, error)
}

// JobExecutor runs one claimed job end to end: fan out the audience
// into delivery rows, push batches through the provider adapter, record
// per-recipient outcomes, settle the job.
type JobExecutor struct {
	jobs          SendJobRepository
	deliveries    DeliveryRepository
	newsletters   NewsletterRepository
	contacts      ContactRepository
	identities    SendingIdentityRepository
	adapters      *providers.Registry
	pausedBackoff time.Duration
}

func NewJobExecutor(
	jobs SendJobRepository,
	deliveries DeliveryRepository,
	newsletters NewsletterRepository,
	contacts ContactRepository,
	identities SendingIdentityRepository,
	adapters *providers.Registry,
	pausedBackoff time.Duration,
) *JobExecutor {
	if pausedBackoff == 0 {
		pausedBackoff = 15 * time.Minute
	}
	return &JobExecutor{
		jobs:          jobs,
		deliveries:    deliveries,
		newsletters:   newsletters,
		contacts:      contacts,
		identities:    identities,
		adapters:      adapters,
		pausedBackoff: pausedBackoff,
	}
}

// Execute claims and runs one job. A lost claim race or an unclaimable
// job is a clean no-op: some other executor owns it, or it was canceled
// in time.
func (e *JobExecutor) Execute(ctx context.Context, jobID int64) error {
	now := time.Now()

	claimed, err := e.jobs.Claim(ctx, jobID, now)
	if err != nil {
		return fmt.Errorf("claim job %d: %w", jobID, err)
	}
	if !claimed {
		return nil
	}

	start := time.Now()
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	logger.Info("executing send job",
		"job_id", job.ID,
		"newsletter_id", job.NewsletterID,
		"provider", job.Provider,
		"failed_attempts", job.Attempts)

	// The identity may have been paused between submit and execution.
	// The job is not at fault, so it goes back in line instead of
	// failing.
	identity, err := e.identities.GetByClient(ctx, job.ClientID)
	if err != nil && !errors.Is(err, repository.ErrIdentityNotFound) {
		return e.failJob(ctx, job, fmt.Sprintf("load sending identity: %v", err))
	}
	if identity != nil && identity.QualityState == model.QualityPaused {
		logger.Warn("sending identity paused, requeueing job",
			"job_id", job.ID, "client_id", job.ClientID)
		return e.jobs.Requeue(ctx, job.ID, now.Add(e.pausedBackoff), "sending identity paused")
	}

	newsletter, err := e.newsletters.GetByID(ctx, job.NewsletterID)
	if err != nil {
		return e.failJob(ctx, job, fmt.Sprintf("load newsletter: %v", err))
	}

	adapter, err := e.adapters.Get(job.Provider)
	if err != nil {
		return e.failJob(ctx, job, fmt.Sprintf("resolve provider: %v", err))
	}

	audience, err := e.resolveRecipients(ctx, job)
	if err != nil {
		return e.failJob(ctx, job, fmt.Sprintf("resolve audience: %v", err))
	}
	if len(audience) == 0 {
		return e.failJob(ctx, job, fmt.Sprintf("audience %q resolved to zero recipients", job.AudienceTag))
	}

	deliveries, err := e.fanOut(ctx, job, audience)
	if err != nil {
		return e.failJob(ctx, job, fmt.Sprintf("create deliveries: %v", err))
	}

	accepted, rejected, lastSendErr := e.sendBatches(ctx, job, newsletter, adapter, deliveries)

	prom.ObserveJobExecution(time.Since(start).Seconds(), job.Provider)

	if accepted == 0 && lastSendErr != nil {
		return e.failJob(ctx, job, fmt.Sprintf("provider rejected every batch: %v", lastSendErr))
	}

	logger.Info("send job finished",
		"job_id", job.ID,
		"accepted", accepted,
		"rejected", rejected,
		"duration", time.Since(start))

	return e.jobs.Complete(ctx, job.ID, time.Now())
}

func (e *JobExecutor) resolveRecipients(ctx context.Context, job *model.SendJob) ([]*model.Contact, error) {
	if len(job.Recipients) > 0 {
		// A retry carries its own list; re-resolving drops anyone who
		// unsubscribed since the original send.
		return e.contacts.ResolveEmails(ctx, job.ClientID, job.Recipients)
	}
	tag := job.AudienceTag
	if tag == "" {
		tag = model.AudienceTagAll
	}
	return e.contacts.ResolveAudience(ctx, job.ClientID, tag)
}

func (e *JobExecutor) fanOut(ctx context.Context, job *model.SendJob, audience []*model.Contact) ([]*model.Delivery, error) {
	deliveries := make([]*model.Delivery, len(audience))
	for i, contact := range audience {
		contactID := contact.ID
		deliveries[i] = &model.Delivery{
			JobID:        job.ID,
			NewsletterID: job.NewsletterID,
			ContactID:    &contactID,
			Email:        contact.Email,
			AudienceTag:  job.AudienceTag,
			Status:       model.DeliveryStatusQueued,
		}
	}
	return e.deliveries.CreateBatch(ctx, deliveries)
}

func (e *JobExecutor) sendBatches(
	ctx context.Context,
	job *model.SendJob,
	newsletter *model.Newsletter,
	adapter providers.Adapter,
	deliveries []*model.Delivery,
) (accepted, rejected int, lastErr error) {
	limit := adapter.BatchLimit()
	if limit <= 0 {
		limit = len(deliveries)
	}

	for offset := 0; offset < len(deliveries); offset += limit {
		end := offset + limit
		if end > len(deliveries) {
			end = len(deliveries)
		}
		batch := deliveries[offset:end]

		recipients := make([]providers.Recipient, len(batch))
		for i, d := range batch {
			recipients[i] = providers.Recipient{DeliveryID: d.ID, Email: d.Email}
		}

		out, err := adapter.Send(ctx, &providers.SendInput{
			NewsletterID: newsletter.ID,
			Subject:      newsletter.Subject,
			FromEmail:    newsletter.FromEmail,
			ReplyTo:      newsletter.ReplyTo,
			HTML:         newsletter.RenderedHTML,
			Recipients:   recipients,
		})
		if err != nil {
			lastErr = err
			logger.Error("provider batch failed",
				"job_id", job.ID, "provider", adapter.Name(), "batch_size", len(batch), "error", err)
			for _, d := range batch {
				if markErr := e.deliveries.MarkRejected(ctx, d.ID, err.Error()); markErr != nil {
					logger.Error("failed to record batch rejection", "delivery_id", d.ID, "error", markErr)
				}
				rejected++
				prom.AddDeliveryProcessed(string(model.DeliveryStatusFailed), adapter.Name())
			}
			continue
		}

		now := time.Now()
		for _, a := range out.Accepted {
			if err := e.deliveries.MarkAccepted(ctx, a.DeliveryID, a.ProviderMessageID, now); err != nil {
				logger.Error("failed to record acceptance", "delivery_id", a.DeliveryID, "error", err)
				continue
			}
			accepted++
			prom.AddDeliveryProcessed(string(model.DeliveryStatusSent), adapter.Name())
		}
		for _, r := range out.Rejected {
			if err := e.deliveries.MarkRejected(ctx, r.DeliveryID, r.Reason); err != nil {
				logger.Error("failed to record rejection", "delivery_id", r.DeliveryID, "error", err)
				continue
			}
			rejected++
			prom.AddDeliveryProcessed(string(model.DeliveryStatusFailed), adapter.Name())
		}
	}

	return accepted, rejected, lastErr
}

func (e *JobExecutor) failJob(ctx context.Context, job *model.SendJob, reason string) error {
	logger.Error("send job failed", "job_id", job.ID, "reason", reason)
	return e.jobs.Fail(ctx, job.ID, reason, time.Now())
}
