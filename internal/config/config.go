package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/gamification"
)

const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

type Config struct {
	Port string `env:"PORT" envDefault:"3333"`

	ClerkSecretKey string `env:"CLERK_SECRET_KEY"`
	DevJWTSecret   string `env:"DEV_JWT_SECRET"`
	MetricsUser    string `env:"METRICS_USER"`
	MetricsPass    string `env:"METRICS_PASS"`

	StoreBackend       string `env:"STORE_BACKEND" envDefault:"postgres"`
	StoreTxMaxAttempts int    `env:"STORE_TX_MAX_ATTEMPTS" envDefault:"5"`

	DatabaseURL string `env:"DATABASE_URL"`

	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsJSON string `env:"FIREBASE_CREDENTIALS_JSON"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE" envDefault:"./serviceAccountKey.json"`

	CommunityRegistryFile string `env:"COMMUNITY_REGISTRY_FILE"`

	Scoring   ScoringConfig
	Reconcile ReconcileConfig
}

type ScoringConfig struct {
	RegisterTree int `env:"POINTS_REGISTER_TREE" envDefault:"20"`
	CreatePost   int `env:"POINTS_CREATE_POST" envDefault:"5"`
	VerifiedPost int `env:"POINTS_VERIFIED_POST" envDefault:"10"`
	LikeReceived int `env:"POINTS_LIKE_RECEIVED" envDefault:"1"`
	BaseXP       int `env:"BASE_XP" envDefault:"100"`
}

type ReconcileConfig struct {
	Workers       int           `env:"RECONCILE_WORKERS" envDefault:"4"`
	QueueSize     int           `env:"RECONCILE_QUEUE_SIZE" envDefault:"256"`
	Timeout       time.Duration `env:"RECONCILE_TIMEOUT" envDefault:"10s"`
	SweepInterval time.Duration `env:"RECONCILE_SWEEP_INTERVAL" envDefault:"0s"`
}

// Load reads .env when present and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	return Parse()
}

func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendFirestore:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.StoreTxMaxAttempts < 1 {
		return fmt.Errorf("STORE_TX_MAX_ATTEMPTS must be at least 1, got %d", c.StoreTxMaxAttempts)
	}
	if c.Reconcile.Workers < 1 {
		return fmt.Errorf("RECONCILE_WORKERS must be at least 1, got %d", c.Reconcile.Workers)
	}
	if c.Reconcile.QueueSize < 1 {
		return fmt.Errorf("RECONCILE_QUEUE_SIZE must be at least 1, got %d", c.Reconcile.QueueSize)
	}

	return c.Policy().Validate()
}

func (c *Config) Policy() *gamification.Policy {
	return &gamification.Policy{
		Points: map[gamification.EventKind]int{
			gamification.EventRegisterTree: c.Scoring.RegisterTree,
			gamification.EventCreatePost:   c.Scoring.CreatePost,
			gamification.EventVerifiedPost: c.Scoring.VerifiedPost,
			gamification.EventLikeReceived: c.Scoring.LikeReceived,
		},
		BaseXP:     c.Scoring.BaseXP,
		BadgeRules: gamification.DefaultBadgeRules(),
	}
}

// Registry returns the registry override file when configured, otherwise
// the built-in city list.
func (c *Config) Registry() (*community.Registry, error) {
	if c.CommunityRegistryFile == "" {
		return community.DefaultRegistry(), nil
	}
	return community.LoadRegistryFile(c.CommunityRegistryFile)
}
