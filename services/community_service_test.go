package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore/memory"
	"greenTrackAPI/internal/user"
)

var (
	nearDelhi  = &community.Coordinate{Lat: 28.61, Lng: 77.21}
	nearMumbai = &community.Coordinate{Lat: 19.10, Lng: 72.90}
	midOcean   = &community.Coordinate{Lat: -30, Lng: -140}
)

func newCommunityService() (*CommunityService, *memory.Store, *recordingScheduler) {
	store := memory.New()
	sched := &recordingScheduler{}
	return NewCommunityService(store, community.DefaultRegistry(), sched), store, sched
}

func TestEnsureUserCreatesWithResolvedCommunity(t *testing.T) {
	svc, _, sched := newCommunityService()

	u, created, err := svc.EnsureUser(context.Background(), user.Profile{ID: "u1", Email: "a@b.c"}, nearDelhi)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, "delhi", u.CommunityID)
	assert.Equal(t, "Delhi Community", u.CommunityName)
	assert.Equal(t, "Anonymous", u.Name)
	assert.Equal(t, 1, u.Level)
	assert.Zero(t, u.Points)
	assert.Zero(t, u.XP)
	assert.Empty(t, u.Badges)
	assert.False(t, u.IsCommunityLeader)
	assert.Equal(t, []string{"delhi"}, sched.Calls())
}

func TestEnsureUserWithoutLocationJoinsGlobal(t *testing.T) {
	svc, _, _ := newCommunityService()

	u, _, err := svc.EnsureUser(context.Background(), user.Profile{ID: "u1", Name: "Asha"}, nil)
	require.NoError(t, err)
	assert.Equal(t, community.GlobalID, u.CommunityID)
	assert.Equal(t, "Global Earth Guardians", u.CommunityName)

	u, _, err = svc.EnsureUser(context.Background(), user.Profile{ID: "u2", Name: "Ravi"}, midOcean)
	require.NoError(t, err)
	assert.Equal(t, community.GlobalID, u.CommunityID)
}

func TestEnsureUserKeepsExistingUser(t *testing.T) {
	svc, store, _ := newCommunityService()
	seedUser(store, "u1", "mumbai", 40)

	u, created, err := svc.EnsureUser(context.Background(), user.Profile{ID: "u1"}, nearDelhi)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "mumbai", u.CommunityID)
	assert.Equal(t, 40, u.Points)
}

func TestEnsureUserBackfillsMissingCommunity(t *testing.T) {
	svc, store, _ := newCommunityService()
	seedUser(store, "u1", "", 15)

	u, created, err := svc.EnsureUser(context.Background(), user.Profile{ID: "u1"}, nearMumbai)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "mumbai", u.CommunityID)
	assert.Equal(t, 15, u.Points)
}

func TestEnsureUserRequiresID(t *testing.T) {
	svc, _, _ := newCommunityService()
	_, _, err := svc.EnsureUser(context.Background(), user.Profile{}, nil)
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestAssignCommunitySchedulesOldAndNew(t *testing.T) {
	svc, store, sched := newCommunityService()
	seedUser(store, "u1", "delhi", 70)

	c, err := svc.AssignCommunity(context.Background(), "u1", nearMumbai)
	require.NoError(t, err)
	assert.Equal(t, "mumbai", c.ID)
	assert.Equal(t, []string{"delhi", "mumbai"}, sched.Calls())

	u, err := store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "mumbai", u.CommunityID)
	assert.Equal(t, "Mumbai Community", u.CommunityName)
	require.NotNil(t, u.LastLocation)
	assert.Equal(t, *nearMumbai, *u.LastLocation)
}

func TestAssignCommunityUnknownUser(t *testing.T) {
	svc, _, _ := newCommunityService()
	_, err := svc.AssignCommunity(context.Background(), "ghost", nearDelhi)
	assert.Error(t, err)
}

func TestGetCommunitySynthesizesFromRegistry(t *testing.T) {
	svc, store, _ := newCommunityService()
	store.PutCommunity(&community.Record{ID: "delhi", Name: "Delhi Community", LeaderID: "a", LeaderPoints: 9})

	rec, err := svc.GetCommunity(context.Background(), "delhi")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.LeaderID)

	rec, err = svc.GetCommunity(context.Background(), "kolkata")
	require.NoError(t, err)
	assert.Equal(t, "Kolkata Community", rec.Name)
	assert.Empty(t, rec.LeaderID)

	_, err = svc.GetCommunity(context.Background(), "atlantis")
	assert.ErrorIs(t, err, ErrCommunityNotFound)
}

func TestLeaderboardRanksAndLimits(t *testing.T) {
	svc, store, _ := newCommunityService()
	seedUser(store, "a", "delhi", 10)
	seedUser(store, "b", "delhi", 30)
	seedUser(store, "c", "delhi", 20)
	seedUser(store, "d", "mumbai", 99)

	board, err := svc.Leaderboard(context.Background(), "delhi", 2)
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "b", board.Entries[0].UserID)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, "c", board.Entries[1].UserID)
	assert.Equal(t, 2, board.Entries[1].Rank)

	all, err := svc.Leaderboard(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all.Entries, 4)
	assert.Equal(t, "d", all.Entries[0].UserID)

	_, err = svc.Leaderboard(context.Background(), "atlantis", 5)
	assert.ErrorIs(t, err, ErrCommunityNotFound)
}
