package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	"github.com/linkupapp/linkup/internal/realtime"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
)

func newTestNotificationService(t *testing.T) (*NotificationService, *realtime.Feed, *gorm.DB) {
	t.Helper()

	db := openTestDB(t)
	feed := realtime.NewFeed(0)
	svc, err := NewNotificationService(db, feed)
	require.NoError(t, err)
	return svc, feed, db
}

func seedRelationship(t *testing.T, db *gorm.DB, requesterID, receiverID string) models.Relationship {
	t.Helper()

	rel := models.Relationship{
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		PairKey:     models.PairKey(requesterID, receiverID),
		Status:      models.RelationshipPending,
	}
	require.NoError(t, db.Create(&rel).Error)
	return rel
}

func TestNotifyCreatesRecordAndFeedEvent(t *testing.T) {
	svc, feed, db := newTestNotificationService(t)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")
	rel := seedRelationship(t, db, alice.ID, bob.ID)

	dto, err := svc.Notify(context.Background(), NotifyInput{
		RecipientID:    bob.ID,
		Type:           models.NotificationMatchRequest,
		ActorID:        alice.ID,
		RelationshipID: rel.ID,
	})
	require.NoError(t, err)
	require.Equal(t, bob.ID, dto.RecipientID)
	require.False(t, dto.IsRead)
	require.Equal(t, rel.ID, dto.Payload["relationship_id"])
	require.Equal(t, alice.ID, dto.Payload["actor_id"])

	events := feed.Since(bob.ID, 0)
	require.Len(t, events, 1)
	require.Equal(t, realtime.OpCreated, events[0].Op)
}

func TestNotifyUnknownRecipient(t *testing.T) {
	svc, _, db := newTestNotificationService(t)
	alice := seedUser(t, db, "alice@example.com", "alice")
	rel := seedRelationship(t, db, alice.ID, "ghost")

	_, err := svc.Notify(context.Background(), NotifyInput{
		RecipientID:    "ghost",
		Type:           models.NotificationMatchRequest,
		ActorID:        alice.ID,
		RelationshipID: rel.ID,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotifyRequiresRelationshipReference(t *testing.T) {
	svc, _, db := newTestNotificationService(t)
	bob := seedUser(t, db, "bob@example.com", "bob")

	_, err := svc.Notify(context.Background(), NotifyInput{
		RecipientID: bob.ID,
		Type:        models.NotificationMatchRequest,
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestMarkReadFlowAndIdempotence(t *testing.T) {
	svc, feed, db := newTestNotificationService(t)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")
	rel := seedRelationship(t, db, alice.ID, bob.ID)

	created, err := svc.Notify(context.Background(), NotifyInput{
		RecipientID:    bob.ID,
		Type:           models.NotificationMatchRequest,
		ActorID:        alice.ID,
		RelationshipID: rel.ID,
	})
	require.NoError(t, err)

	count, err := svc.UnreadCount(context.Background(), bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	read, err := svc.MarkRead(context.Background(), created.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	count, err = svc.UnreadCount(context.Background(), bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	seqAfterFirst := feed.LastSeq()

	// Repeating the call succeeds without another update event.
	again, err := svc.MarkRead(context.Background(), created.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, again.IsRead)
	require.Equal(t, seqAfterFirst, feed.LastSeq())
}

func TestMarkReadForbiddenForNonRecipient(t *testing.T) {
	svc, _, db := newTestNotificationService(t)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")
	rel := seedRelationship(t, db, alice.ID, bob.ID)

	created, err := svc.Notify(context.Background(), NotifyInput{
		RecipientID:    bob.ID,
		Type:           models.NotificationMatchRequest,
		ActorID:        alice.ID,
		RelationshipID: rel.ID,
	})
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), created.ID, alice.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	count, err := svc.UnreadCount(context.Background(), bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMarkReadNotFound(t *testing.T) {
	svc, _, db := newTestNotificationService(t)
	bob := seedUser(t, db, "bob@example.com", "bob")

	_, err := svc.MarkRead(context.Background(), "missing", bob.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	svc, feed, db := newTestNotificationService(t)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")
	rel := seedRelationship(t, db, alice.ID, bob.ID)

	created := make(map[string]bool)
	for i := 0; i < 3; i++ {
		dto, err := svc.Notify(context.Background(), NotifyInput{
			RecipientID:    bob.ID,
			Type:           models.NotificationMatchRequest,
			ActorID:        alice.ID,
			RelationshipID: rel.ID,
		})
		require.NoError(t, err)
		created[dto.ID] = true
	}

	afterCreates := feed.LastSeq()
	require.NoError(t, svc.MarkAllRead(context.Background(), bob.ID))

	count, err := svc.UnreadCount(context.Background(), bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	// Every affected row surfaces on the feed with a concrete record.
	events := feed.Since(bob.ID, afterCreates)
	require.Len(t, events, 3)
	for _, event := range events {
		require.Equal(t, realtime.OpUpdated, event.Op)
		dto, ok := event.Notification.(*NotificationDTO)
		require.True(t, ok)
		require.True(t, created[dto.ID])
		require.True(t, dto.IsRead)
	}

	// A second pass has nothing left to flip and emits no events.
	afterAll := feed.LastSeq()
	require.NoError(t, svc.MarkAllRead(context.Background(), bob.ID))
	require.Empty(t, feed.Since(bob.ID, afterAll))
}

func TestListForUserFiltersAndPaginates(t *testing.T) {
	svc, _, db := newTestNotificationService(t)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")
	rel := seedRelationship(t, db, alice.ID, bob.ID)

	for i := 0; i < 5; i++ {
		_, err := svc.Notify(context.Background(), NotifyInput{
			RecipientID:    bob.ID,
			Type:           models.NotificationMatchRequest,
			ActorID:        alice.ID,
			RelationshipID: rel.ID,
		})
		require.NoError(t, err)
	}

	items, err := svc.ListForUser(context.Background(), ListNotificationsInput{UserID: bob.ID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Another recipient sees nothing.
	items, err = svc.ListForUser(context.Background(), ListNotificationsInput{UserID: alice.ID})
	require.NoError(t, err)
	require.Empty(t, items)
}
