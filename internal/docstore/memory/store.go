// Package memory is an in-process docstore backend with optimistic
// concurrency, used by tests and local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/gamification"
	"greenTrackAPI/internal/user"
)

type userDoc struct {
	data    user.User
	version uint64
}

type Store struct {
	mu          sync.Mutex
	users       map[string]*userDoc
	communities map[string]*community.Record

	maxAttempts  int
	beforeCommit func(attempt int)
	batchErr     error
	closed       bool
}

type Option func(*Store)

// WithMaxAttempts sets the transaction retry ceiling.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		users:       make(map[string]*userDoc),
		communities: make(map[string]*community.Record),
		maxAttempts: docstore.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBeforeCommit installs a hook that runs after a transaction function
// returns and before its reads are validated. Tests use it together with
// Touch to force conflicts.
func (s *Store) SetBeforeCommit(hook func(attempt int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = hook
}

// FailNextBatch makes the next batch commit fail with err without applying
// any of its writes.
func (s *Store) FailNextBatch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchErr = err
}

// Touch bumps a user's version as if another writer had committed.
func (s *Store) Touch(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.users[userID]; ok {
		doc.version++
	}
}

// PutUser stores a copy of u, replacing any existing document.
func (s *Store) PutUser(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := uint64(1)
	if doc, ok := s.users[u.ID]; ok {
		version = doc.version + 1
	}
	s.users[u.ID] = &userDoc{data: cloneUser(u), version: version}
}

func (s *Store) PutCommunity(rec *community.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.communities[rec.ID] = &cp
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTx{
			store:  s,
			reads:  make(map[string]uint64),
			writes: make(map[string]scoreWrite),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}

		s.mu.Lock()
		hook := s.beforeCommit
		s.mu.Unlock()
		if hook != nil {
			hook(attempt)
		}

		err := s.commit(tx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", docstore.ErrTooManyAttempts, s.maxAttempts, docstore.ErrConflict)
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("memory store is closed")
	}

	for id, seen := range tx.reads {
		var current uint64
		if doc, ok := s.users[id]; ok {
			current = doc.version
		}
		if current != seen {
			return fmt.Errorf("user %s changed during transaction: %w", id, docstore.ErrConflict)
		}
	}

	for id := range tx.writes {
		if _, ok := s.users[id]; !ok {
			return fmt.Errorf("user %s: %w", id, docstore.ErrNotFound)
		}
	}

	for id, w := range tx.writes {
		doc := s.users[id]
		w.applyTo(&doc.data)
		doc.version++
	}

	return nil
}

type scoreWrite struct {
	score         gamification.Score
	badgesChanged bool
}

func (w scoreWrite) applyTo(u *user.User) {
	u.Points = w.score.Points
	u.XP = w.score.XP
	u.Level = w.score.Level
	if w.badgesChanged {
		u.Badges = append([]string(nil), w.score.Badges...)
	}
}

type memTx struct {
	store  *Store
	reads  map[string]uint64
	writes map[string]scoreWrite
}

func (t *memTx) GetUser(_ context.Context, id string) (*user.User, error) {
	if len(t.writes) > 0 {
		return nil, errors.New("memory store: reads must precede writes in a transaction")
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	doc, ok := t.store.users[id]
	if !ok {
		t.reads[id] = 0
		return nil, fmt.Errorf("user %s: %w", id, docstore.ErrNotFound)
	}

	t.reads[id] = doc.version
	u := cloneUser(&doc.data)
	return &u, nil
}

func (t *memTx) UpdateScore(id string, score gamification.Score, badgesChanged bool) error {
	t.writes[id] = scoreWrite{
		score: gamification.Score{
			Points: score.Points,
			XP:     score.XP,
			Level:  score.Level,
			Badges: append([]string(nil), score.Badges...),
		},
		badgesChanged: badgesChanged,
	}
	return nil
}

func (s *Store) TopUsers(ctx context.Context, communityID string, limit int) ([]*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]*user.User, 0, len(s.users))
	for _, doc := range s.users {
		if communityID != "" && doc.data.CommunityID != communityID {
			continue
		}
		u := cloneUser(&doc.data)
		matches = append(matches, &u)
	}

	// Ties are broken by id, like a document store ordering by key.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Points != matches[j].Points {
			return matches[i].Points > matches[j].Points
		}
		return matches[i].ID < matches[j].ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) FlaggedUsers(ctx context.Context, communityID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, doc := range s.users {
		if doc.data.CommunityID == communityID && doc.data.IsCommunityLeader {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, docstore.ErrNotFound)
	}
	u := cloneUser(&doc.data)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, docstore.ErrAlreadyExists)
	}
	s.users[u.ID] = &userDoc{data: cloneUser(u), version: 1}
	return nil
}

func (s *Store) SetUserCommunity(ctx context.Context, userID string, c community.Community, loc *community.Coordinate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, docstore.ErrNotFound)
	}
	doc.data.CommunityID = c.ID
	doc.data.CommunityName = c.Name
	doc.data.LastLocation = cloneCoordinate(loc)
	doc.version++
	return nil
}

func (s *Store) GetCommunity(ctx context.Context, id string) (*community.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.communities[id]
	if !ok {
		return nil, fmt.Errorf("community %s: %w", id, docstore.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("memory store is closed")
	}
	return ctx.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneUser(u *user.User) user.User {
	cp := *u
	if u.Badges != nil {
		cp.Badges = append([]string{}, u.Badges...)
	}
	cp.LastLocation = cloneCoordinate(u.LastLocation)
	return cp
}

func cloneCoordinate(c *community.Coordinate) *community.Coordinate {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
