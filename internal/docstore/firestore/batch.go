package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
)

// batch commits its writes through a write-only transaction, which is
// all-or-nothing and fails when an Update targets a missing document.
type batch struct {
	store  *Store
	writes []func(tx *firestore.Transaction) error
}

func (s *Store) NewBatch() docstore.Batch {
	return &batch{store: s}
}

func (b *batch) UpsertCommunityLeader(l community.Leadership) {
	ref := b.store.communities().Doc(l.CommunityID)
	b.writes = append(b.writes, func(tx *firestore.Transaction) error {
		return tx.Set(ref, map[string]any{
			"id":           l.CommunityID,
			"name":         l.CommunityName,
			"leaderId":     l.LeaderID,
			"leaderName":   l.LeaderName,
			"leaderPhoto":  l.LeaderPhoto,
			"leaderPoints": l.LeaderPoints,
			"updatedAt":    l.UpdatedAt,
		}, firestore.MergeAll)
	})
}

func (b *batch) UpdateLeaderPoints(communityID string, points int) {
	ref := b.store.communities().Doc(communityID)
	b.writes = append(b.writes, func(tx *firestore.Transaction) error {
		return tx.Update(ref, []firestore.Update{{Path: "leaderPoints", Value: points}})
	})
}

func (b *batch) SetCommunityLeaderFlag(userID string, isLeader bool) {
	ref := b.store.users().Doc(userID)
	b.writes = append(b.writes, func(tx *firestore.Transaction) error {
		return tx.Update(ref, []firestore.Update{{Path: "isCommunityLeader", Value: isLeader}})
	})
}

func (b *batch) Commit(ctx context.Context) error {
	err := b.store.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, write := range b.writes {
			if err := write(tx); err != nil {
				return err
			}
		}
		return nil
	}, firestore.MaxAttempts(b.store.maxAttempts))
	if err != nil {
		return fmt.Errorf("batch commit failed: %w", mapStatus(err))
	}
	return nil
}
