package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/user"
)

// setupTestStore connects to TEST_DATABASE_URL and skips when it is unset.
func setupTestStore(t *testing.T) *Store {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dbURL, 50)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))

	t.Cleanup(func() {
		_, err := s.db.Exec(ctx, "DELETE FROM users WHERE id LIKE 'test_%'")
		if err != nil {
			t.Logf("Warning: failed to cleanup test users: %v", err)
		}
		_, err = s.db.Exec(ctx, "DELETE FROM communities WHERE id LIKE 'test_%'")
		if err != nil {
			t.Logf("Warning: failed to cleanup test communities: %v", err)
		}
		s.Close()
	})

	return s
}

func testID(prefix string) string {
	return fmt.Sprintf("test_%s_%d", prefix, time.Now().UnixNano())
}

func TestPostgresConcurrentScoreUpdates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := testID("user")
	require.NoError(t, s.CreateUser(ctx, &user.User{ID: id, Level: 1, CommunityID: community.GlobalID, CreatedAt: time.Now()}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
				u, err := tx.GetUser(ctx, id)
				if err != nil {
					return err
				}
				score := u.Score()
				score.Points += 5
				return tx.UpdateScore(id, score, false)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 50, u.Points)
}

func TestPostgresBatchRollsBackOnMissingUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	communityID := testID("community")
	leaderID := testID("leader")
	require.NoError(t, s.CreateUser(ctx, &user.User{ID: leaderID, Level: 1, CommunityID: communityID, CreatedAt: time.Now()}))

	b := s.NewBatch()
	b.UpsertCommunityLeader(community.Leadership{CommunityID: communityID, LeaderID: leaderID, UpdatedAt: time.Now()})
	b.SetCommunityLeaderFlag(leaderID, true)
	b.SetCommunityLeaderFlag(testID("ghost"), false)

	assert.ErrorIs(t, b.Commit(ctx), docstore.ErrNotFound)

	_, err := s.GetCommunity(ctx, communityID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	u, err := s.GetUser(ctx, leaderID)
	require.NoError(t, err)
	assert.False(t, u.IsCommunityLeader)
}

func TestPostgresTopUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	communityID := testID("community")
	for i, points := range []int{50, 70, 10} {
		u := &user.User{ID: fmt.Sprintf("%s_%d", testID("member"), i), Level: 1, Points: points, CommunityID: communityID, CreatedAt: time.Now()}
		require.NoError(t, s.CreateUser(ctx, u))
	}

	top, err := s.TopUsers(ctx, communityID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 70, top[0].Points)

	all, err := s.TopUsers(ctx, communityID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostgresFlaggedUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	communityID := testID("community")
	leader := &user.User{ID: testID("leader"), Level: 1, CommunityID: communityID, IsCommunityLeader: true, CreatedAt: time.Now()}
	member := &user.User{ID: testID("member"), Level: 1, CommunityID: communityID, CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, leader))
	require.NoError(t, s.CreateUser(ctx, member))

	flagged, err := s.FlaggedUsers(ctx, communityID)
	require.NoError(t, err)
	assert.Equal(t, []string{leader.ID}, flagged)
}
