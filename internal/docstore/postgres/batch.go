package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
)

type queued struct {
	what      string
	mustExist bool
}

type batch struct {
	db    *Store
	batch *pgx.Batch
	ops   []queued
}

func (s *Store) NewBatch() docstore.Batch {
	return &batch{db: s, batch: &pgx.Batch{}}
}

func (b *batch) UpsertCommunityLeader(l community.Leadership) {
	b.batch.Queue(`
	INSERT INTO communities (id, name, leader_id, leader_name, leader_photo, leader_points, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		leader_id = EXCLUDED.leader_id,
		leader_name = EXCLUDED.leader_name,
		leader_photo = EXCLUDED.leader_photo,
		leader_points = EXCLUDED.leader_points,
		updated_at = EXCLUDED.updated_at
	`, l.CommunityID, l.CommunityName, l.LeaderID, l.LeaderName, l.LeaderPhoto, l.LeaderPoints, l.UpdatedAt)
	b.ops = append(b.ops, queued{what: "community " + l.CommunityID})
}

func (b *batch) UpdateLeaderPoints(communityID string, points int) {
	b.batch.Queue(`UPDATE communities SET leader_points = $2 WHERE id = $1`, communityID, points)
	b.ops = append(b.ops, queued{what: "community " + communityID, mustExist: true})
}

func (b *batch) SetCommunityLeaderFlag(userID string, isLeader bool) {
	b.batch.Queue(`UPDATE users SET is_community_leader = $2 WHERE id = $1`, userID, isLeader)
	b.ops = append(b.ops, queued{what: "user " + userID, mustExist: true})
}

// Commit sends every queued statement inside one transaction. An update that
// matches no row rolls the whole batch back.
func (b *batch) Commit(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, b.db.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, b.batch)

		for _, op := range b.ops {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("batch write to %s failed: %w", op.what, err)
			}
			if op.mustExist && tag.RowsAffected() == 0 {
				results.Close()
				return fmt.Errorf("batch rejected, %s: %w", op.what, docstore.ErrNotFound)
			}
		}

		return results.Close()
	})
}
