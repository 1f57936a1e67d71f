package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/gamification"
)

var ErrMissingUserID = errors.New("user id is required")

// LeadershipScheduler hands a community off for asynchronous leadership
// reconciliation. Schedule must not block.
type LeadershipScheduler interface {
	Schedule(communityID string)
}

type LedgerService struct {
	store     docstore.Store
	policy    *gamification.Policy
	scheduler LeadershipScheduler
}

func NewLedgerService(store docstore.Store, policy *gamification.Policy, scheduler LeadershipScheduler) *LedgerService {
	return &LedgerService{
		store:     store,
		policy:    policy,
		scheduler: scheduler,
	}
}

// Award applies one scoring event to a user inside a single store
// transaction. A missing user is a silent no-op. On commit the user's
// community is scheduled for leadership reconciliation; that work is never
// awaited and cannot fail the award.
func (s *LedgerService) Award(ctx context.Context, userID string, kind gamification.EventKind) (*gamification.AwardResult, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	amount, err := s.policy.PointsFor(kind)
	if err != nil {
		return nil, err
	}

	var result gamification.AwardResult
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		// The function may run several times; start from a clean result.
		result = gamification.AwardResult{UserID: userID, Kind: kind, Amount: amount}

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				result.Skipped = true
				return nil
			}
			return err
		}

		out, err := s.policy.Apply(u.Score(), kind)
		if err != nil {
			return err
		}

		result.Points = out.Score.Points
		result.XP = out.Score.XP
		result.Level = out.Score.Level
		result.LeveledUp = out.LeveledUp
		result.NewBadges = out.NewBadges
		result.CommunityID = u.CommunityID

		return tx.UpdateScore(userID, out.Score, len(out.NewBadges) > 0)
	})
	if err != nil {
		awardsTotal.WithLabelValues(string(kind), outcomeFailed).Inc()
		log.Printf("Award: Failed to award %s to %s: %v", kind, userID, err)
		return nil, fmt.Errorf("failed to award points: %w", err)
	}

	if result.Skipped {
		awardsTotal.WithLabelValues(string(kind), outcomeSkipped).Inc()
		log.Printf("Award: User %s not found, skipping %s", userID, kind)
		return &result, nil
	}

	awardsTotal.WithLabelValues(string(kind), outcomeAwarded).Inc()
	if result.LeveledUp {
		levelUpsTotal.Inc()
		log.Printf("Award: User %s reached level %d", userID, result.Level)
	}
	for _, badge := range result.NewBadges {
		badgesAwardedTotal.WithLabelValues(badge).Inc()
	}
	log.Printf("Awarded %d points to %s for %s", amount, userID, kind)

	if s.scheduler != nil && result.CommunityID != "" {
		s.scheduler.Schedule(result.CommunityID)
	}

	return &result, nil
}
