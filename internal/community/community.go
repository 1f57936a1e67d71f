package community

import (
	"errors"
	"fmt"
	"time"
)

const GlobalID = "global"

// MaxDistanceKM is the radius around a city centroid inside which a user
// belongs to that city's community.
const MaxDistanceKM = 50.0

type Kind string

const (
	KindCity   Kind = "city"
	KindGlobal Kind = "global"
)

type Community struct {
	ID   string  `json:"id" yaml:"id"`
	Name string  `json:"name" yaml:"name"`
	Kind Kind    `json:"type" yaml:"type"`
	Lat  float64 `json:"lat" yaml:"lat"`
	Lng  float64 `json:"lng" yaml:"lng"`
}

func (c Community) IsGlobal() bool {
	return c.Kind == KindGlobal
}

// Record is the stored community document. The leader fields are a
// denormalized snapshot refreshed by every reconciliation pass.
type Record struct {
	ID              string    `json:"id" firestore:"id"`
	Name            string    `json:"name" firestore:"name"`
	LeaderID        string    `json:"leaderId,omitempty" firestore:"leaderId"`
	LeaderName      string    `json:"leaderName,omitempty" firestore:"leaderName"`
	LeaderPhoto     string    `json:"leaderPhoto,omitempty" firestore:"leaderPhoto"`
	LeaderPoints    int       `json:"leaderPoints" firestore:"leaderPoints"`
	CommunityPoints int       `json:"communityPoints" firestore:"communityPoints"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty" firestore:"updatedAt"`
}

// Leadership is the snapshot written when a new leader is promoted.
type Leadership struct {
	CommunityID   string
	CommunityName string
	LeaderID      string
	LeaderName    string
	LeaderPhoto   string
	LeaderPoints  int
	UpdatedAt     time.Time
}

var ErrInvalidRegistry = errors.New("invalid community registry")

// Registry is an immutable, ordered table of communities. Order matters:
// when two centroids are equidistant the first one wins.
type Registry struct {
	entries       []Community
	byID          map[string]Community
	global        Community
	maxDistanceKM float64
}

func DefaultCommunities() []Community {
	return []Community{
		{ID: "mumbai", Name: "Mumbai Community", Kind: KindCity, Lat: 19.0760, Lng: 72.8777},
		{ID: "delhi", Name: "Delhi Community", Kind: KindCity, Lat: 28.7041, Lng: 77.1025},
		{ID: "bengaluru", Name: "Bengaluru Community", Kind: KindCity, Lat: 12.9716, Lng: 77.5946},
		{ID: "chennai", Name: "Chennai Community", Kind: KindCity, Lat: 13.0827, Lng: 80.2707},
		{ID: "kolkata", Name: "Kolkata Community", Kind: KindCity, Lat: 22.5726, Lng: 88.3639},
		{ID: GlobalID, Name: "Global Earth Guardians", Kind: KindGlobal},
	}
}

func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultCommunities(), MaxDistanceKM)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry validates entries and copies them into a Registry. Exactly one
// entry must be of KindGlobal, and it must use GlobalID.
func NewRegistry(entries []Community, maxDistanceKM float64) (*Registry, error) {
	if maxDistanceKM <= 0 {
		return nil, fmt.Errorf("%w: max distance must be positive, got %v", ErrInvalidRegistry, maxDistanceKM)
	}

	r := &Registry{
		entries:       make([]Community, 0, len(entries)),
		byID:          make(map[string]Community, len(entries)),
		maxDistanceKM: maxDistanceKM,
	}

	globals := 0
	for _, c := range entries {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: community without id", ErrInvalidRegistry)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate community %q", ErrInvalidRegistry, c.ID)
		}
		if c.Kind == "" {
			c.Kind = KindCity
		}

		if (c.Kind == KindGlobal) != (c.ID == GlobalID) {
			return nil, fmt.Errorf("%w: community %q of type %q, only %q may be global", ErrInvalidRegistry, c.ID, c.Kind, GlobalID)
		}

		switch c.Kind {
		case KindGlobal:
			globals++
			r.global = c
		case KindCity:
			if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
				return nil, fmt.Errorf("%w: community %q has out of range coordinates", ErrInvalidRegistry, c.ID)
			}
		default:
			return nil, fmt.Errorf("%w: community %q has unknown type %q", ErrInvalidRegistry, c.ID, c.Kind)
		}

		r.entries = append(r.entries, c)
		r.byID[c.ID] = c
	}

	if globals != 1 {
		return nil, fmt.Errorf("%w: expected exactly one global community, found %d", ErrInvalidRegistry, globals)
	}

	return r, nil
}

func (r *Registry) Global() Community {
	return r.global
}

func (r *Registry) Lookup(id string) (Community, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Cities returns the non-global communities in registry order.
func (r *Registry) Cities() []Community {
	cities := make([]Community, 0, len(r.entries))
	for _, c := range r.entries {
		if !c.IsGlobal() {
			cities = append(cities, c)
		}
	}
	return cities
}

func (r *Registry) All() []Community {
	out := make([]Community, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) MaxDistanceKM() float64 {
	return r.maxDistanceKM
}
