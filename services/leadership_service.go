package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
)

const defaultCommunityName = "Community"

type LeadershipService struct {
	store    docstore.Store
	registry *community.Registry
	now      func() time.Time
}

func NewLeadershipService(store docstore.Store, registry *community.Registry) *LeadershipService {
	return &LeadershipService{
		store:    store,
		registry: registry,
		now:      time.Now,
	}
}

// Reconcile makes the community record and the member leader flags agree
// with the community's current top scorer. All writes go through one batch.
// The global community has no leader and is ignored.
func (s *LeadershipService) Reconcile(ctx context.Context, communityID string) error {
	if communityID == "" || communityID == community.GlobalID {
		reconciliationsTotal.WithLabelValues(outcomeIgnored).Inc()
		return nil
	}

	top, err := s.store.TopUsers(ctx, communityID, 1)
	if err != nil {
		reconciliationsTotal.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("failed to query top scorer for %s: %w", communityID, err)
	}
	if len(top) == 0 {
		reconciliationsTotal.WithLabelValues(outcomeNoMembers).Inc()
		return nil
	}
	leader := top[0]

	rec, err := s.store.GetCommunity(ctx, communityID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		reconciliationsTotal.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("failed to read community %s: %w", communityID, err)
	}

	flagged, err := s.store.FlaggedUsers(ctx, communityID)
	if err != nil {
		reconciliationsTotal.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("failed to query flagged members of %s: %w", communityID, err)
	}

	batch := s.store.NewBatch()

	// Only the leader may carry the flag inside the community.
	demoted := make(map[string]bool)
	for _, id := range flagged {
		if id != leader.ID {
			batch.SetCommunityLeaderFlag(id, false)
			demoted[id] = true
		}
	}

	if rec != nil && rec.LeaderID == leader.ID {
		batch.UpdateLeaderPoints(communityID, leader.Points)
		if !leader.IsCommunityLeader {
			batch.SetCommunityLeaderFlag(leader.ID, true)
		}
		if err := batch.Commit(ctx); err != nil {
			reconciliationsTotal.WithLabelValues(outcomeFailed).Inc()
			return fmt.Errorf("failed to refresh leader points for %s: %w", communityID, err)
		}
		if len(demoted) > 0 || !leader.IsCommunityLeader {
			log.Printf("Leadership: Repaired leader flags in %s", communityID)
		}
		reconciliationsTotal.WithLabelValues(outcomeLeaderUnchanged).Inc()
		return nil
	}

	previousID := ""
	if rec != nil {
		previousID = rec.LeaderID
	}

	batch.UpsertCommunityLeader(community.Leadership{
		CommunityID:   communityID,
		CommunityName: s.communityName(communityID, rec),
		LeaderID:      leader.ID,
		LeaderName:    leader.Name,
		LeaderPhoto:   leader.PhotoURL,
		LeaderPoints:  leader.Points,
		UpdatedAt:     s.now(),
	})
	batch.SetCommunityLeaderFlag(leader.ID, true)

	if previousID != "" && !demoted[previousID] {
		demote, err := s.shouldDemote(ctx, previousID, communityID)
		if err != nil {
			reconciliationsTotal.WithLabelValues(outcomeFailed).Inc()
			return err
		}
		if demote {
			batch.SetCommunityLeaderFlag(previousID, false)
		}
	}

	if err := batch.Commit(ctx); err != nil {
		reconciliationsTotal.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("failed to commit leadership change for %s: %w", communityID, err)
	}

	reconciliationsTotal.WithLabelValues(outcomeLeaderChanged).Inc()
	log.Printf("Leadership: %s is now leading %s with %d points", leader.ID, communityID, leader.Points)
	return nil
}

// shouldDemote reports whether the previous leader of communityID should
// lose the flag. A leader who moved away keeps it while they are the
// recorded leader of their new community.
func (s *LeadershipService) shouldDemote(ctx context.Context, previousID, communityID string) (bool, error) {
	prev, err := s.store.GetUser(ctx, previousID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			log.Printf("Leadership: Previous leader %s of %s no longer exists", previousID, communityID)
			return false, nil
		}
		return false, fmt.Errorf("failed to read previous leader %s: %w", previousID, err)
	}
	if prev.CommunityID == communityID || !prev.IsCommunityLeader {
		return true, nil
	}

	current, err := s.store.GetCommunity(ctx, prev.CommunityID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read community %s: %w", prev.CommunityID, err)
	}
	return current.LeaderID != prev.ID, nil
}

func (s *LeadershipService) communityName(communityID string, rec *community.Record) string {
	if c, ok := s.registry.Lookup(communityID); ok && c.Name != "" {
		return c.Name
	}
	if rec != nil && rec.Name != "" {
		return rec.Name
	}
	return defaultCommunityName
}
