package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/user"
)

// setupEmulatorStore runs against the Firestore emulator and skips when
// FIRESTORE_EMULATOR_HOST is unset.
func setupEmulatorStore(t *testing.T) *Store {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	s, err := Open(context.Background(), Config{ProjectID: "greentrack-test", MaxAttempts: 20})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFirestoreAwardTransactionAndLeaderBatch(t *testing.T) {
	s := setupEmulatorStore(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	communityID := fmt.Sprintf("test_%d", suffix)
	a := &user.User{ID: fmt.Sprintf("a_%d", suffix), Level: 1, Points: 50, CommunityID: communityID}
	b := &user.User{ID: fmt.Sprintf("b_%d", suffix), Level: 1, Points: 70, CommunityID: communityID}
	require.NoError(t, s.CreateUser(ctx, a))
	require.NoError(t, s.CreateUser(ctx, b))
	assert.ErrorIs(t, s.CreateUser(ctx, a), docstore.ErrAlreadyExists)

	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		u, err := tx.GetUser(ctx, a.ID)
		if err != nil {
			return err
		}
		score := u.Score()
		score.Points += 5
		return tx.UpdateScore(a.ID, score, false)
	})
	require.NoError(t, err)

	got, err := s.GetUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, got.Points)

	top, err := s.TopUsers(ctx, communityID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, b.ID, top[0].ID)

	batch := s.NewBatch()
	batch.UpsertCommunityLeader(community.Leadership{CommunityID: communityID, LeaderID: b.ID, LeaderPoints: 70, UpdatedAt: time.Now()})
	batch.SetCommunityLeaderFlag(b.ID, true)
	require.NoError(t, batch.Commit(ctx))

	rec, err := s.GetCommunity(ctx, communityID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, rec.LeaderID)

	batch = s.NewBatch()
	batch.SetCommunityLeaderFlag("missing_"+b.ID, true)
	assert.ErrorIs(t, batch.Commit(ctx), docstore.ErrNotFound)
}

func TestFirestoreCreateUserLeavesCallerUntouched(t *testing.T) {
	s := setupEmulatorStore(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	communityID := fmt.Sprintf("flags_%d", suffix)
	u := &user.User{ID: fmt.Sprintf("u_%d", suffix), Level: 1, CommunityID: communityID, IsCommunityLeader: true}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Nil(t, u.Badges)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Badges)

	flagged, err := s.FlaggedUsers(ctx, communityID)
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, flagged)
}

func TestMapStatusKeepsErrorChain(t *testing.T) {
	notFound := status.Error(codes.NotFound, "no such document")
	err := mapStatus(notFound)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, err, notFound)

	aborted := status.Error(codes.Aborted, "contention")
	err = mapStatus(aborted)
	assert.ErrorIs(t, err, docstore.ErrConflict)
	assert.ErrorIs(t, err, aborted)

	other := status.Error(codes.Unavailable, "down")
	assert.Equal(t, other, mapStatus(other))
}
