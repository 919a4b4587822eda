package repository

import (
	"context"
	"testing"
	"time"

	"github.com/inkwire/dispatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewEventRepository(db)
	ctx := context.Background()

	t.Run("records a new event", func(t *testing.T) {
		event := &model.Event{
			Provider:          "resend",
			ProviderEventID:   "evt-1",
			ProviderMessageID: "msg-1",
			Type:              model.EventTypeOpen,
			OccurredAt:        time.Now(),
		}

		created, err := repo.Create(ctx, event)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
	})

	t.Run("redelivered event is rejected as duplicate", func(t *testing.T) {
		event := &model.Event{
			Provider:        "resend",
			ProviderEventID: "evt-dup",
			Type:            model.EventTypeClick,
			OccurredAt:      time.Now(),
		}

		_, err := repo.Create(ctx, event)
		require.NoError(t, err)

		_, err = repo.Create(ctx, &model.Event{
			Provider:        "resend",
			ProviderEventID: "evt-dup",
			Type:            model.EventTypeClick,
			OccurredAt:      time.Now(),
		})
		assert.ErrorIs(t, err, ErrDuplicateEvent)
	})
}

func TestEventRepository_CountByClientSince(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewEventRepository(db)
	ctx := context.Background()
	now := time.Now()
	clientID := int64(9)

	seed := []struct {
		id         string
		eventType  model.EventType
		occurredAt time.Time
		clientID   *int64
	}{
		{"evt-b1", model.EventTypeBounce, now.Add(-time.Hour), &clientID},
		{"evt-b2", model.EventTypeBounce, now.Add(-2 * time.Hour), &clientID},
		{"evt-b3", model.EventTypeBounce, now.Add(-10 * 24 * time.Hour), &clientID},
		{"evt-c1", model.EventTypeComplaint, now.Add(-time.Hour), &clientID},
		{"evt-u1", model.EventTypeBounce, now.Add(-time.Hour), nil},
	}
	for _, s := range seed {
		_, err := repo.Create(ctx, &model.Event{
			Provider:        "postmark",
			ProviderEventID: s.id,
			Type:            s.eventType,
			ClientID:        s.clientID,
			OccurredAt:      s.occurredAt,
		})
		require.NoError(t, err)
	}

	window := now.Add(-7 * 24 * time.Hour)

	bounces, err := repo.CountByClientSince(ctx, clientID, model.EventTypeBounce, window)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bounces)

	complaints, err := repo.CountByClientSince(ctx, clientID, model.EventTypeComplaint, window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), complaints)
}

func TestEventRepository_ListByNewsletter(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewEventRepository(db)
	ctx := context.Background()
	now := time.Now()
	newsletterID := int64(3)

	for i, id := range []string{"evt-n1", "evt-n2"} {
		_, err := repo.Create(ctx, &model.Event{
			Provider:        "resend",
			ProviderEventID: id,
			Type:            model.EventTypeOpen,
			NewsletterID:    &newsletterID,
			OccurredAt:      now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := repo.ListByNewsletter(ctx, newsletterID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-n1", events[0].ProviderEventID)
}
