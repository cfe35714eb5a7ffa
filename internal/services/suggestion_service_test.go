package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	apperrors "github.com/linkupapp/linkup/pkg/errors"
)

func newTestSuggestionService(t *testing.T, compare Comparator) (*SuggestionService, *RelationshipStore, *gorm.DB) {
	t.Helper()

	db := openTestDB(t)
	svc, err := NewSuggestionService(db, compare)
	require.NoError(t, err)
	store, err := NewRelationshipStore(db)
	require.NoError(t, err)
	return svc, store, db
}

func suggestionIDs(items []SuggestionDTO) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.UserID)
	}
	return ids
}

func TestSuggestExcludesSelfAndActivePairs(t *testing.T) {
	svc, store, db := newTestSuggestionService(t, nil)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")
	carol := seedUser(t, db, "carol@example.com", "carol")
	dave := seedUser(t, db, "dave@example.com", "dave")
	erin := seedUser(t, db, "erin@example.com", "erin")

	// pending with bob, matched with carol, blocked dave.
	_, err := store.UpsertPending(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	rel, err := store.UpsertPending(context.Background(), carol.ID, alice.ID)
	require.NoError(t, err)
	_, err = store.Respond(context.Background(), rel.ID, alice.ID, DecisionAccept)
	require.NoError(t, err)

	_, err = store.Block(context.Background(), alice.ID, dave.ID)
	require.NoError(t, err)

	items, err := svc.Suggest(context.Background(), alice.ID, 10)
	require.NoError(t, err)
	require.Equal(t, []string{erin.ID}, suggestionIDs(items))
}

func TestSuggestIncludesDeclinedPairs(t *testing.T) {
	svc, store, db := newTestSuggestionService(t, nil)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")

	rel, err := store.UpsertPending(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = store.Respond(context.Background(), rel.ID, bob.ID, DecisionDecline)
	require.NoError(t, err)

	items, err := svc.Suggest(context.Background(), alice.ID, 10)
	require.NoError(t, err)
	require.Equal(t, []string{bob.ID}, suggestionIDs(items))
}

func TestSuggestExcludesPrivateUsers(t *testing.T) {
	svc, _, db := newTestSuggestionService(t, nil)
	alice := seedUser(t, db, "alice@example.com", "alice")
	bob := seedUser(t, db, "bob@example.com", "bob")

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", bob.ID).
		Update("is_private", true).Error)

	items, err := svc.Suggest(context.Background(), alice.ID, 10)
	require.NoError(t, err)
	require.Empty(t, suggestionIDs(items))
}

func TestSuggestDefaultOrderIsUsername(t *testing.T) {
	svc, _, db := newTestSuggestionService(t, nil)
	alice := seedUser(t, db, "alice@example.com", "alice")
	seedUser(t, db, "zoe@example.com", "zoe")
	seedUser(t, db, "bob@example.com", "bob")
	seedUser(t, db, "carol@example.com", "carol")

	items, err := svc.Suggest(context.Background(), alice.ID, 10)
	require.NoError(t, err)

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Username)
	}
	require.Equal(t, []string{"bob", "carol", "zoe"}, names)

	// Identical inputs produce the identical order.
	again, err := svc.Suggest(context.Background(), alice.ID, 10)
	require.NoError(t, err)
	require.Equal(t, suggestionIDs(items), suggestionIDs(again))
}

func TestSuggestCustomComparator(t *testing.T) {
	reverse := func(a, b SuggestionDTO) bool { return a.Username > b.Username }
	svc, _, db := newTestSuggestionService(t, reverse)
	alice := seedUser(t, db, "alice@example.com", "alice")
	seedUser(t, db, "bob@example.com", "bob")
	seedUser(t, db, "zoe@example.com", "zoe")

	items, err := svc.Suggest(context.Background(), alice.ID, 10)
	require.NoError(t, err)
	require.Equal(t, "zoe", items[0].Username)
	require.Equal(t, "bob", items[1].Username)
}

func TestSuggestHonorsLimit(t *testing.T) {
	svc, _, db := newTestSuggestionService(t, nil)
	alice := seedUser(t, db, "alice@example.com", "alice")
	seedUser(t, db, "bob@example.com", "bob")
	seedUser(t, db, "carol@example.com", "carol")
	seedUser(t, db, "dave@example.com", "dave")

	items, err := svc.Suggest(context.Background(), alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestSuggestUnknownUser(t *testing.T) {
	svc, _, _ := newTestSuggestionService(t, nil)

	_, err := svc.Suggest(context.Background(), "no-such-user", 10)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
