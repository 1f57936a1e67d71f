package community

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name  string
		coord *Coordinate
		want  string
	}{
		{name: "no location", coord: nil, want: GlobalID},
		{name: "central mumbai", coord: &Coordinate{Lat: 19.08, Lng: 72.88}, want: "mumbai"},
		{name: "new delhi", coord: &Coordinate{Lat: 28.6139, Lng: 77.2090}, want: "delhi"},
		{name: "null island", coord: &Coordinate{Lat: 0, Lng: 0}, want: GlobalID},
		{name: "pune is too far from mumbai", coord: &Coordinate{Lat: 18.5204, Lng: 73.8567}, want: GlobalID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.coord).ID)
		})
	}
}

func TestDistanceKM(t *testing.T) {
	mumbai := Coordinate{Lat: 19.0760, Lng: 72.8777}

	assert.InDelta(t, 0.5, DistanceKM(Coordinate{Lat: 19.08, Lng: 72.88}, mumbai), 0.1)
	assert.InDelta(t, 111.19, DistanceKM(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 1, Lng: 0}), 0.01)
	assert.Zero(t, DistanceKM(mumbai, mumbai))
}

func TestResolveRadiusBoundary(t *testing.T) {
	r, err := NewRegistry([]Community{
		{ID: "origin", Name: "Origin", Kind: KindCity, Lat: 0, Lng: 0},
		{ID: GlobalID, Name: "Global", Kind: KindGlobal},
	}, MaxDistanceKM)
	require.NoError(t, err)

	assert.Equal(t, "origin", r.Resolve(&Coordinate{Lat: 0.44, Lng: 0}).ID)
	assert.Equal(t, GlobalID, r.Resolve(&Coordinate{Lat: 0.46, Lng: 0}).ID)
}

func TestResolvePicksNearestAndFirstOnTie(t *testing.T) {
	r, err := NewRegistry([]Community{
		{ID: "east", Kind: KindCity, Lat: 0, Lng: 0.1},
		{ID: "west", Kind: KindCity, Lat: 0, Lng: -0.1},
		{ID: "near", Kind: KindCity, Lat: 1, Lng: 0.01},
		{ID: GlobalID, Kind: KindGlobal},
	}, MaxDistanceKM)
	require.NoError(t, err)

	assert.Equal(t, "east", r.Resolve(&Coordinate{Lat: 0, Lng: 0}).ID)
	assert.Equal(t, "near", r.Resolve(&Coordinate{Lat: 1, Lng: 0}).ID)
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Community
	}{
		{name: "no global", entries: []Community{{ID: "a", Kind: KindCity}}},
		{name: "two globals", entries: []Community{{ID: "g1", Kind: KindGlobal}, {ID: "g2", Kind: KindGlobal}}},
		{name: "duplicate id", entries: []Community{{ID: "a"}, {ID: "a"}, {ID: GlobalID, Kind: KindGlobal}}},
		{name: "missing id", entries: []Community{{Name: "x"}, {ID: GlobalID, Kind: KindGlobal}}},
		{name: "bad latitude", entries: []Community{{ID: "a", Lat: 91}, {ID: GlobalID, Kind: KindGlobal}}},
		{name: "unknown kind", entries: []Community{{ID: "a", Kind: "planet"}, {ID: GlobalID, Kind: KindGlobal}}},
		{name: "renamed global", entries: []Community{{ID: "a"}, {ID: "earth", Kind: KindGlobal}}},
		{name: "city using global id", entries: []Community{{ID: GlobalID, Kind: KindCity}, {ID: "earth", Kind: KindGlobal}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.entries, MaxDistanceKM)
			assert.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}

	_, err := NewRegistry(DefaultCommunities(), 0)
	assert.ErrorIs(t, err, ErrInvalidRegistry)
}

func TestRegistryAccessors(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, GlobalID, r.Global().ID)
	assert.Len(t, r.Cities(), 5)
	assert.Len(t, r.All(), 6)

	delhi, ok := r.Lookup("delhi")
	require.True(t, ok)
	assert.Equal(t, "Delhi Community", delhi.Name)

	_, ok = r.Lookup("atlantis")
	assert.False(t, ok)
}

func TestParseRegistry(t *testing.T) {
	data := []byte(`
max_distance_km: 25
communities:
  - id: pune
    name: Pune Community
    lat: 18.5204
    lng: 73.8567
  - id: global
    name: Everyone
    type: global
`)

	r, err := ParseRegistry(data)
	require.NoError(t, err)

	assert.Equal(t, 25.0, r.MaxDistanceKM())
	assert.Equal(t, "pune", r.Resolve(&Coordinate{Lat: 18.52, Lng: 73.85}).ID)
	assert.Equal(t, "Everyone", r.Global().Name)

	_, err = ParseRegistry([]byte("communities: ["))
	assert.Error(t, err)
}

func TestParseRegistryRejectsRenamedGlobal(t *testing.T) {
	data := []byte(`
communities:
  - id: pune
    lat: 18.5204
    lng: 73.8567
  - id: earth
    name: Earth
    type: global
`)

	_, err := ParseRegistry(data)
	assert.ErrorIs(t, err, ErrInvalidRegistry)
}
