// Package postgres implements the docstore on PostgreSQL. Transactions run
// at SERIALIZABLE isolation and are retried on serialization failures, which
// gives the same optimistic semantics as a document store transaction.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/gamification"
	"greenTrackAPI/internal/user"
)

//go:embed schema.sql
var schema string

const userColumns = `id, name, email, photo_url, points, xp, level, badges, community_id,
	community_name, is_community_leader, last_lat, last_lng, created_at`

type Store struct {
	db          *pgxpool.Pool
	maxAttempts int
}

// Open creates a connection pool with the same limits the API has always
// run with and verifies connectivity.
func Open(ctx context.Context, dbURL string, maxAttempts int) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(pool, maxAttempts), nil
}

func New(db *pgxpool.Pool, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = docstore.DefaultMaxAttempts
	}
	return &Store{db: db, maxAttempts: maxAttempts}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			ptx := &pgTx{tx: tx}
			if err := fn(ctx, ptx); err != nil {
				return err
			}
			return ptx.flush(ctx)
		})
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		log.Printf("postgres store: transaction attempt %d/%d conflicted: %v", attempt, s.maxAttempts, err)
	}

	return fmt.Errorf("%w after %d attempts: %w", docstore.ErrTooManyAttempts, s.maxAttempts, docstore.ErrConflict)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type pendingScore struct {
	id            string
	score         gamification.Score
	badgesChanged bool
}

type pgTx struct {
	tx     pgx.Tx
	writes []pendingScore
}

func (t *pgTx) GetUser(ctx context.Context, id string) (*user.User, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (t *pgTx) UpdateScore(id string, score gamification.Score, badgesChanged bool) error {
	t.writes = append(t.writes, pendingScore{id: id, score: score, badgesChanged: badgesChanged})
	return nil
}

func (t *pgTx) flush(ctx context.Context) error {
	for _, w := range t.writes {
		var (
			tag pgconn.CommandTag
			err error
		)
		if w.badgesChanged {
			badges := w.score.Badges
			if badges == nil {
				badges = []string{}
			}
			tag, err = t.tx.Exec(ctx,
				`UPDATE users SET points = $2, xp = $3, level = $4, badges = $5 WHERE id = $1`,
				w.id, w.score.Points, w.score.XP, w.score.Level, badges)
		} else {
			tag, err = t.tx.Exec(ctx,
				`UPDATE users SET points = $2, xp = $3, level = $4 WHERE id = $1`,
				w.id, w.score.Points, w.score.XP, w.score.Level)
		}
		if err != nil {
			return fmt.Errorf("failed to update score for %s: %w", w.id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user %s: %w", w.id, docstore.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) TopUsers(ctx context.Context, communityID string, limit int) ([]*user.User, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if communityID == "" {
		rows, err = s.db.Query(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY points DESC, id ASC LIMIT $1`, lim)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE community_id = $1 ORDER BY points DESC, id ASC LIMIT $2`,
			communityID, lim)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top users: %w", err)
	}

	return users, nil
}

func (s *Store) FlaggedUsers(ctx context.Context, communityID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM users WHERE community_id = $1 AND is_community_leader ORDER BY id`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged users: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read flagged users: %w", err)
	}
	return ids, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	var lat, lng *float64
	if u.LastLocation != nil {
		lat, lng = &u.LastLocation.Lat, &u.LastLocation.Lng
	}
	badges := u.Badges
	if badges == nil {
		badges = []string{}
	}

	tag, err := s.db.Exec(ctx, `
	INSERT INTO users (id, name, email, photo_url, points, xp, level, badges, community_id,
		community_name, is_community_leader, last_lat, last_lng, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO NOTHING
	`,
		u.ID, u.Name, u.Email, u.PhotoURL, u.Points, u.XP, u.Level, badges, u.CommunityID,
		u.CommunityName, u.IsCommunityLeader, lat, lng, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, docstore.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) SetUserCommunity(ctx context.Context, userID string, c community.Community, loc *community.Coordinate) error {
	var lat, lng *float64
	if loc != nil {
		lat, lng = &loc.Lat, &loc.Lng
	}

	tag, err := s.db.Exec(ctx, `
	UPDATE users
	SET community_id = $2, community_name = $3, last_lat = $4, last_lng = $5
	WHERE id = $1
	`, userID, c.ID, c.Name, lat, lng)
	if err != nil {
		return fmt.Errorf("failed to set user community: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) GetCommunity(ctx context.Context, id string) (*community.Record, error) {
	rec := &community.Record{}
	err := s.db.QueryRow(ctx, `
	SELECT id, name, leader_id, leader_name, leader_photo, leader_points, community_points, updated_at
	FROM communities
	WHERE id = $1
	`, id).Scan(
		&rec.ID,
		&rec.Name,
		&rec.LeaderID,
		&rec.LeaderName,
		&rec.LeaderPhoto,
		&rec.LeaderPoints,
		&rec.CommunityPoints,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("community %s: %w", id, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return rec, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	var lat, lng *float64
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PhotoURL,
		&u.Points,
		&u.XP,
		&u.Level,
		&u.Badges,
		&u.CommunityID,
		&u.CommunityName,
		&u.IsCommunityLeader,
		&lat,
		&lng,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if lat != nil && lng != nil {
		u.LastLocation = &community.Coordinate{Lat: *lat, Lng: *lng}
	}
	return u, nil
}
