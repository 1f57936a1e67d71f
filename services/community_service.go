package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/leaderboard"
	"greenTrackAPI/internal/user"
)

const (
	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 100
)

var ErrCommunityNotFound = errors.New("community not found")

type CommunityService struct {
	store     docstore.Store
	registry  *community.Registry
	scheduler LeadershipScheduler
	now       func() time.Time
}

func NewCommunityService(store docstore.Store, registry *community.Registry, scheduler LeadershipScheduler) *CommunityService {
	return &CommunityService{
		store:     store,
		registry:  registry,
		scheduler: scheduler,
		now:       time.Now,
	}
}

// EnsureUser returns the stored user for profile.ID, creating it on first
// sign-in. An existing user without a community is assigned one from loc.
// The bool result reports whether the user was created.
func (s *CommunityService) EnsureUser(ctx context.Context, profile user.Profile, loc *community.Coordinate) (*user.User, bool, error) {
	if profile.ID == "" {
		return nil, false, ErrMissingUserID
	}

	existing, err := s.store.GetUser(ctx, profile.ID)
	if err == nil {
		if existing.CommunityID != "" {
			return existing, false, nil
		}
		if _, err := s.AssignCommunity(ctx, profile.ID, loc); err != nil {
			return nil, false, err
		}
		u, err := s.store.GetUser(ctx, profile.ID)
		return u, false, err
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}

	c := s.registry.Resolve(loc)
	u := user.New(profile.ID, profile.Name, profile.Email, profile.PhotoURL, c, loc, s.now().UTC())

	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			// Lost a race with a concurrent sign-in for the same user.
			u, err := s.store.GetUser(ctx, profile.ID)
			return u, false, err
		}
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("User %s joined %s", u.ID, c.ID)
	s.schedule(c.ID)
	return u, true, nil
}

// AssignCommunity resolves loc and moves the user into the resulting
// community. Both the old and the new community are scheduled for
// reconciliation since either leader may have changed.
func (s *CommunityService) AssignCommunity(ctx context.Context, userID string, loc *community.Coordinate) (community.Community, error) {
	if userID == "" {
		return community.Community{}, ErrMissingUserID
	}

	current, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return community.Community{}, fmt.Errorf("failed to load user: %w", err)
	}

	c := s.registry.Resolve(loc)
	if err := s.store.SetUserCommunity(ctx, userID, c, loc); err != nil {
		return community.Community{}, fmt.Errorf("failed to assign community: %w", err)
	}

	if current.CommunityID != c.ID {
		log.Printf("User %s moved from %q to %s", userID, current.CommunityID, c.ID)
		s.schedule(current.CommunityID)
	}
	s.schedule(c.ID)
	return c, nil
}

func (s *CommunityService) GetUser(ctx context.Context, userID string) (*user.User, error) {
	return s.store.GetUser(ctx, userID)
}

// GetCommunity returns the stored record, or an empty one for a registry
// community that has never been reconciled.
func (s *CommunityService) GetCommunity(ctx context.Context, id string) (*community.Record, error) {
	rec, err := s.store.GetCommunity(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to load community: %w", err)
	}

	c, ok := s.registry.Lookup(id)
	if !ok {
		return nil, ErrCommunityNotFound
	}
	return &community.Record{ID: c.ID, Name: c.Name}, nil
}

// Leaderboard ranks a community's members by points. An empty communityID
// ranks everyone.
func (s *CommunityService) Leaderboard(ctx context.Context, communityID string, limit int) (*leaderboard.Leaderboard, error) {
	if communityID != "" {
		if _, ok := s.registry.Lookup(communityID); !ok {
			return nil, ErrCommunityNotFound
		}
	}

	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	users, err := s.store.TopUsers(ctx, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	board := &leaderboard.Leaderboard{
		CommunityID: communityID,
		Entries:     make([]*leaderboard.LeaderboardEntry, 0, len(users)),
	}
	for i, u := range users {
		board.Entries = append(board.Entries, &leaderboard.LeaderboardEntry{
			UserID:            u.ID,
			Name:              u.Name,
			PhotoURL:          u.PhotoURL,
			Points:            u.Points,
			Level:             u.Level,
			Rank:              i + 1,
			IsCommunityLeader: u.IsCommunityLeader,
		})
	}
	return board, nil
}

func (s *CommunityService) schedule(communityID string) {
	if s.scheduler != nil && communityID != "" {
		s.scheduler.Schedule(communityID)
	}
}
