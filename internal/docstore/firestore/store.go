// Package firestore implements the docstore on Cloud Firestore, reached
// through the Firebase Admin SDK.
package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/gamification"
	"greenTrackAPI/internal/user"
)

type Config struct {
	ProjectID       string
	CredentialsJSON string // base64 encoded service account
	CredentialsFile string
	MaxAttempts     int
}

type Store struct {
	client      *firestore.Client
	maxAttempts int
}

// Open initializes a Firebase app and its Firestore client. Credentials come
// from the base64 encoded JSON first, then the file; with neither set the
// SDK falls back to application default credentials or the emulator.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption

	switch {
	case cfg.CredentialsJSON != "":
		decoded, err := base64.StdEncoding.DecodeString(cfg.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
		log.Println("Firestore: Initializing from base64 credentials.")
	case cfg.CredentialsFile != "" && fileExists(cfg.CredentialsFile):
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		log.Printf("Firestore: Initializing from local file: %s.", cfg.CredentialsFile)
	default:
		log.Println("Firestore: No explicit credentials, using application defaults.")
	}

	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	return New(client, cfg.MaxAttempts), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func New(client *firestore.Client, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = docstore.DefaultMaxAttempts
	}
	return &Store{client: client, maxAttempts: maxAttempts}
}

func (s *Store) users() *firestore.CollectionRef {
	return s.client.Collection(docstore.UsersCollection)
}

func (s *Store) communities() *firestore.CollectionRef {
	return s.client.Collection(docstore.CommunitiesCollection)
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &fsTx{store: s, tx: tx})
	}, firestore.MaxAttempts(s.maxAttempts))
	if err != nil && status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w after %d attempts: %w: %v", docstore.ErrTooManyAttempts, s.maxAttempts, docstore.ErrConflict, err)
	}
	return err
}

type fsTx struct {
	store *Store
	tx    *firestore.Transaction
}

func (t *fsTx) GetUser(_ context.Context, id string) (*user.User, error) {
	snap, err := t.tx.Get(t.store.users().Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user %s: %w", id, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read user %s: %w", id, err)
	}
	return decodeUser(snap)
}

func (t *fsTx) UpdateScore(id string, score gamification.Score, badgesChanged bool) error {
	updates := []firestore.Update{
		{Path: "points", Value: score.Points},
		{Path: "xp", Value: score.XP},
		{Path: "level", Value: score.Level},
	}
	if badgesChanged {
		badges := score.Badges
		if badges == nil {
			badges = []string{}
		}
		updates = append(updates, firestore.Update{Path: "badges", Value: badges})
	}
	return t.tx.Update(t.store.users().Doc(id), updates)
}

func (s *Store) TopUsers(ctx context.Context, communityID string, limit int) ([]*user.User, error) {
	q := s.users().Query
	if communityID != "" {
		q = q.Where("communityId", "==", communityID)
	}
	q = q.OrderBy("points", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var users []*user.User
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query top users: %w", err)
		}
		u, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) FlaggedUsers(ctx context.Context, communityID string) ([]string, error) {
	iter := s.users().
		Where("communityId", "==", communityID).
		Where("isCommunityLeader", "==", true).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query flagged users: %w", err)
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	snap, err := s.users().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user %s: %w", id, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return decodeUser(snap)
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	doc := *u
	if doc.Badges == nil {
		doc.Badges = []string{}
	}
	_, err := s.users().Doc(u.ID).Create(ctx, &doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("user %s: %w", u.ID, docstore.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) SetUserCommunity(ctx context.Context, userID string, c community.Community, loc *community.Coordinate) error {
	var lastLocation any
	if loc != nil {
		lastLocation = map[string]any{"lat": loc.Lat, "lng": loc.Lng}
	}

	_, err := s.users().Doc(userID).Update(ctx, []firestore.Update{
		{Path: "communityId", Value: c.ID},
		{Path: "communityName", Value: c.Name},
		{Path: "lastLocation", Value: lastLocation},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("user %s: %w", userID, docstore.ErrNotFound)
		}
		return fmt.Errorf("failed to set user community: %w", err)
	}
	return nil
}

func (s *Store) GetCommunity(ctx context.Context, id string) (*community.Record, error) {
	snap, err := s.communities().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("community %s: %w", id, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get community: %w", err)
	}

	rec := &community.Record{}
	if err := snap.DataTo(rec); err != nil {
		return nil, fmt.Errorf("failed to decode community %s: %w", id, err)
	}
	rec.ID = snap.Ref.ID
	return rec, nil
}

func (s *Store) Ping(ctx context.Context) error {
	iter := s.communities().Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decodeUser(snap *firestore.DocumentSnapshot) (*user.User, error) {
	u := &user.User{}
	if err := snap.DataTo(u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", snap.Ref.ID, err)
	}
	u.ID = snap.Ref.ID
	if u.Level < 1 {
		u.Level = 1
	}
	return u, nil
}

func mapStatus(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", docstore.ErrNotFound, err)
	case codes.Aborted:
		return fmt.Errorf("%w: %w", docstore.ErrConflict, err)
	default:
		return err
	}
}
