// Package docstore defines the document store the gamification core runs on:
// single-user transactions, multi-document atomic batches and ordered range
// queries. Backends live in the subpackages.
package docstore

import (
	"context"
	"errors"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/gamification"
	"greenTrackAPI/internal/user"
)

const (
	UsersCollection       = "users"
	CommunitiesCollection = "communities"

	DefaultMaxAttempts = 5
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrConflict        = errors.New("transaction conflict")
	ErrTooManyAttempts = errors.New("transaction retries exhausted")
)

// Tx is the read-modify-write view inside RunTransaction. Reads must happen
// before writes; writes are applied only if the whole function returns nil.
type Tx interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
	UpdateScore(id string, score gamification.Score, badgesChanged bool) error
}

// Batch collects writes that commit all-or-nothing. Updates to documents
// that do not exist fail the whole batch.
type Batch interface {
	UpsertCommunityLeader(l community.Leadership)
	UpdateLeaderPoints(communityID string, points int)
	SetCommunityLeaderFlag(userID string, isLeader bool)
	Commit(ctx context.Context) error
}

type Store interface {
	// RunTransaction retries fn on conflicting concurrent writes up to the
	// backend's attempt ceiling, then fails with ErrTooManyAttempts.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	NewBatch() Batch

	// TopUsers returns users ordered by points descending. An empty
	// communityID ranks every user.
	TopUsers(ctx context.Context, communityID string, limit int) ([]*user.User, error)
	// FlaggedUsers returns the ids of communityID's members whose leader
	// flag is set.
	FlaggedUsers(ctx context.Context, communityID string) ([]string, error)

	GetUser(ctx context.Context, id string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) error
	SetUserCommunity(ctx context.Context, userID string, c community.Community, loc *community.Coordinate) error
	GetCommunity(ctx context.Context, id string) (*community.Record, error)

	Ping(ctx context.Context) error
	Close() error
}
