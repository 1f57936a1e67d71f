package memory

import (
	"context"
	"errors"
	"fmt"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
)

type batchOp struct {
	check func(s *Store) error
	apply func(s *Store)
}

type batch struct {
	store *Store
	ops   []batchOp
}

func (s *Store) NewBatch() docstore.Batch {
	return &batch{store: s}
}

// UpsertCommunityLeader merges the leader snapshot into the community
// record, creating it when absent. CommunityPoints is left untouched.
func (b *batch) UpsertCommunityLeader(l community.Leadership) {
	b.ops = append(b.ops, batchOp{
		apply: func(s *Store) {
			rec, ok := s.communities[l.CommunityID]
			if !ok {
				rec = &community.Record{ID: l.CommunityID}
				s.communities[l.CommunityID] = rec
			}
			rec.Name = l.CommunityName
			rec.LeaderID = l.LeaderID
			rec.LeaderName = l.LeaderName
			rec.LeaderPhoto = l.LeaderPhoto
			rec.LeaderPoints = l.LeaderPoints
			rec.UpdatedAt = l.UpdatedAt
		},
	})
}

func (b *batch) UpdateLeaderPoints(communityID string, points int) {
	b.ops = append(b.ops, batchOp{
		check: func(s *Store) error {
			if _, ok := s.communities[communityID]; !ok {
				return fmt.Errorf("community %s: %w", communityID, docstore.ErrNotFound)
			}
			return nil
		},
		apply: func(s *Store) {
			s.communities[communityID].LeaderPoints = points
		},
	})
}

func (b *batch) SetCommunityLeaderFlag(userID string, isLeader bool) {
	b.ops = append(b.ops, batchOp{
		check: func(s *Store) error {
			if _, ok := s.users[userID]; !ok {
				return fmt.Errorf("user %s: %w", userID, docstore.ErrNotFound)
			}
			return nil
		},
		apply: func(s *Store) {
			doc := s.users[userID]
			doc.data.IsCommunityLeader = isLeader
			doc.version++
		},
	})
}

func (b *batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("memory store is closed")
	}

	if s.batchErr != nil {
		err := s.batchErr
		s.batchErr = nil
		return err
	}

	for _, op := range b.ops {
		if op.check == nil {
			continue
		}
		if err := op.check(s); err != nil {
			return fmt.Errorf("batch rejected: %w", err)
		}
	}

	for _, op := range b.ops {
		op.apply(s)
	}
	return nil
}
