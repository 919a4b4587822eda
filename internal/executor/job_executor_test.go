package executor

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/inkwire/dispatch/internal/providers"
	"github.com/inkwire/dispatch/internal/repository"
	"github.com/inkwire/dispatch/pkg/pg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	executor    *JobExecutor
	jobs        *repository.SendJobRepository
	deliveries  *repository.DeliveryRepository
	newsletters *repository.NewsletterRepository
	contacts    *repository.ContactRepository
	identities  *repository.SendingIdentityRepository
}

func setupFixture(t *testing.T, adapters ...providers.Adapter) *fixture {
	rawDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = rawDB.AutoMigrate(
		&repository.NewsletterEntity{},
		&repository.ContactEntity{},
		&repository.ContactTagEntity{},
		&repository.SendingIdentityEntity{},
		&repository.SendJobEntity{},
		&repository.DeliveryEntity{},
		&repository.EventEntity{},
	)
	require.NoError(t, err)

	db := &pg.DB{}
	dbValue := reflect.ValueOf(db).Elem()
	for _, field := range []string{"read", "write"} {
		f := dbValue.FieldByName(field)
		f = reflect.NewAt(f.Type(), f.Addr().UnsafePointer()).Elem()
		f.Set(reflect.ValueOf(rawDB))
	}

	if len(adapters) == 0 {
		adapters = []providers.Adapter{providers.NewExportAdapter()}
	}

	jobs := repository.NewSendJobRepository(db)
	deliveries := repository.NewDeliveryRepository(db)
	newsletters := repository.NewNewsletterRepository(db)
	contacts := repository.NewContactRepository(db)
	identities := repository.NewSendingIdentityRepository(db)

	return &fixture{
		executor: NewJobExecutor(
			jobs, deliveries, newsletters, contacts, identities,
			providers.NewRegistry(adapters...), 15*time.Minute,
		),
		jobs:        jobs,
		deliveries:  deliveries,
		newsletters: newsletters,
		contacts:    contacts,
		identities:  identities,
	}
}

func (f *fixture) seedNewsletter(t *testing.T) *model.Newsletter {
	t.Helper()
	n, err := f.newsletters.Create(context.Background(), &model.Newsletter{
		ClientID:     10,
		Subject:      "Weekly digest",
		FromEmail:    "news@inkwire.dev",
		ReplyTo:      "support@inkwire.dev",
		RenderedHTML: "<html><body>hello</body></html>",
		Status:       model.NewsletterStatusApproved,
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) seedContacts(t *testing.T, emails ...string) {
	t.Helper()
	for _, email := range emails {
		_, err := f.contacts.Create(context.Background(), &model.Contact{
			ClientID: 10,
			Email:    email,
			Status:   model.ContactStatusActive,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) seedJob(t *testing.T, newsletterID int64, provider string) *model.SendJob {
	t.Helper()
	job, _, err := f.jobs.CreateOrGet(context.Background(), &model.SendJob{
		NewsletterID:   newsletterID,
		ClientID:       10,
		Provider:       provider,
		AudienceTag:    model.AudienceTagAll,
		IdempotencyKey: "test-send",
		Status:         model.SendJobStatusQueued,
		ScheduledFor:   time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	return job
}

func TestJobExecutor_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("export job marks every recipient sent", func(t *testing.T) {
		f := setupFixture(t)
		n := f.seedNewsletter(t)
		f.seedContacts(t, "a@example.com", "b@example.com", "c@example.com")
		job := f.seedJob(t, n.ID, "html_export")

		require.NoError(t, f.executor.Execute(ctx, job.ID))

		done, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SendJobStatusCompleted, done.Status)

		deliveries, err := f.deliveries.List(ctx, &model.DeliveryFilter{JobID: &job.ID})
		require.NoError(t, err)
		require.Len(t, deliveries, 3)
		for _, d := range deliveries {
			assert.Equal(t, model.DeliveryStatusSent, d.Status)
			assert.NotEmpty(t, d.ProviderMessageID)
		}
	})

	t.Run("empty audience fails the job with a reason", func(t *testing.T) {
		f := setupFixture(t)
		n := f.seedNewsletter(t)
		job := f.seedJob(t, n.ID, "html_export")

		require.NoError(t, f.executor.Execute(ctx, job.ID))

		failed, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SendJobStatusFailed, failed.Status)
		assert.Contains(t, failed.LastError, "zero recipients")
	})

	t.Run("paused identity requeues instead of failing", func(t *testing.T) {
		f := setupFixture(t)
		n := f.seedNewsletter(t)
		f.seedContacts(t, "a@example.com")
		pausedAt := time.Now()
		_, err := f.identities.Create(ctx, &model.SendingIdentity{
			ClientID:          10,
			Provider:          "html_export",
			QualityState:      model.QualityPaused,
			VerificationState: model.VerificationVerified,
			AutoPausedAt:      &pausedAt,
			AutoPauseReason:   "bounce rate over threshold",
		})
		require.NoError(t, err)
		job := f.seedJob(t, n.ID, "html_export")

		require.NoError(t, f.executor.Execute(ctx, job.ID))

		requeued, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SendJobStatusQueued, requeued.Status)
		assert.True(t, requeued.ScheduledFor.After(time.Now()))
		assert.Equal(t, "sending identity paused", requeued.LastError)

		deliveries, err := f.deliveries.List(ctx, &model.DeliveryFilter{JobID: &job.ID})
		require.NoError(t, err)
		assert.Empty(t, deliveries)
	})

	t.Run("explicit recipient list drops unsubscribed contacts", func(t *testing.T) {
		f := setupFixture(t)
		n := f.seedNewsletter(t)
		f.seedContacts(t, "keep@example.com")
		_, err := f.contacts.Create(ctx, &model.Contact{
			ClientID: 10,
			Email:    "gone@example.com",
			Status:   model.ContactStatusUnsubscribed,
		})
		require.NoError(t, err)

		job, _, err := f.jobs.CreateOrGet(ctx, &model.SendJob{
			NewsletterID:   n.ID,
			ClientID:       10,
			Provider:       "html_export",
			AudienceTag:    model.AudienceTagAll,
			IdempotencyKey: "retry:1",
			Status:         model.SendJobStatusQueued,
			Recipients:     []string{"keep@example.com", "gone@example.com"},
			ScheduledFor:   time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)

		require.NoError(t, f.executor.Execute(ctx, job.ID))

		deliveries, err := f.deliveries.List(ctx, &model.DeliveryFilter{JobID: &job.ID})
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		assert.Equal(t, "keep@example.com", deliveries[0].Email)
	})

	t.Run("claimed job is not executed twice", func(t *testing.T) {
		f := setupFixture(t)
		n := f.seedNewsletter(t)
		f.seedContacts(t, "a@example.com")
		job := f.seedJob(t, n.ID, "html_export")

		require.NoError(t, f.executor.Execute(ctx, job.ID))
		require.NoError(t, f.executor.Execute(ctx, job.ID))

		deliveries, err := f.deliveries.List(ctx, &model.DeliveryFilter{JobID: &job.ID})
		require.NoError(t, err)
		assert.Len(t, deliveries, 1)
	})

	t.Run("canceled job is a no-op", func(t *testing.T) {
		f := setupFixture(t)
		n := f.seedNewsletter(t)
		f.seedContacts(t, "a@example.com")
		job := f.seedJob(t, n.ID, "html_export")

		_, err := f.jobs.Cancel(ctx, job.ID)
		require.NoError(t, err)

		require.NoError(t, f.executor.Execute(ctx, job.ID))

		canceled, err := f.jobs.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SendJobStatusCanceled, canceled.Status)
	})
}

type rejectingAdapter struct{}

func (rejectingAdapter) Name() string             { return "rejecting" }
func (rejectingAdapter) SupportsScheduling() bool { return true }
func (rejectingAdapter) BatchLimit() int          { return 2 }
func (rejectingAdapter) Send(ctx context.Context, in *providers.SendInput) (*providers.SendOutput, error) {
	out := &providers.SendOutput{}
	for _, r := range in.Recipients {
		out.Rejected = append(out.Rejected, providers.Rejection{
			DeliveryID: r.DeliveryID,
			Email:      r.Email,
			Reason:     "mailbox unavailable",
		})
	}
	return out, nil
}

func TestJobExecutor_RejectedRecipients(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, rejectingAdapter{})
	n := f.seedNewsletter(t)
	f.seedContacts(t, "a@example.com", "b@example.com", "c@example.com")
	job := f.seedJob(t, n.ID, "rejecting")

	require.NoError(t, f.executor.Execute(ctx, job.ID))

	// Per-recipient rejections do not fail the job; the run itself
	// completed and the failures live on the delivery ledger.
	done, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SendJobStatusCompleted, done.Status)

	failed, err := f.deliveries.ListFailedForJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, failed, 3)
}
