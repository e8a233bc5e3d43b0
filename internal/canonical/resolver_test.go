package canonical

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/store"
)

func newResolver(s store.CanonicalStops) *Resolver {
	return NewResolver(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// offset moves a point north and east by the given meters.
func offset(lat, lng, north, east float64) (float64, float64) {
	dLat := north / earthRadiusMeters * 180 / math.Pi
	dLng := east / (earthRadiusMeters * math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	return lat + dLat, lng + dLng
}

func TestResolveUserStopRadiusProperty(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	baseLat, baseLng := 42.5216, -70.8982

	for i := 0; i < 200; i++ {
		r := newResolver(store.NewMemoryStore())
		meters := rng.Float64() * 120
		angle := rng.Float64() * 2 * math.Pi
		lat, lng := offset(baseLat, baseLng, meters*math.Cos(angle), meters*math.Sin(angle))

		first, err := r.ResolveUserStop(ctx, "salem", Stop{ID: "a", Title: "First", Lat: baseLat, Lng: baseLng, UserAuthored: true})
		require.NoError(t, err)
		second, err := r.ResolveUserStop(ctx, "salem", Stop{ID: "b", Title: "Second", Lat: lat, Lng: lng, UserAuthored: true})
		require.NoError(t, err)

		d := DistanceMeters(baseLat, baseLng, lat, lng)
		assert.Equal(t, d <= MatchRadiusMeters, first.ID == second.ID, "distance %.3f m", d)
	}
}

func TestResolveUserStopRadiusBoundary(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		meters float64
		same   bool
	}{
		{0, true},
		{10, true},
		{49.9, true},
		{50.1, false},
		{75, false},
	}
	for _, tt := range tests {
		r := newResolver(store.NewMemoryStore())
		first, err := r.ResolveUserStop(ctx, "salem", Stop{Title: "Pier", Lat: 42.52, Lng: -70.88})
		require.NoError(t, err)
		lat, lng := offset(42.52, -70.88, tt.meters, 0)
		second, err := r.ResolveUserStop(ctx, "salem", Stop{Title: "Pier", Lat: lat, Lng: lng})
		require.NoError(t, err)
		assert.Equal(t, tt.same, first.ID == second.ID, "%.1f m", tt.meters)
	}
}

func TestResolveUserStopCityScoped(t *testing.T) {
	ctx := context.Background()
	r := newResolver(store.NewMemoryStore())
	a, err := r.ResolveUserStop(ctx, "salem", Stop{Title: "Square", Lat: 42.52, Lng: -70.88})
	require.NoError(t, err)
	b, err := r.ResolveUserStop(ctx, "boston", Stop{Title: "Square", Lat: 42.52, Lng: -70.88})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolveUserStopSameStopTwice(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := newResolver(s)
	stop := Stop{ID: "u1", Title: "Derby Wharf", Lat: 42.5186, Lng: -70.8848, ImageURL: "https://maps/wharf.jpg"}
	a, err := r.ResolveUserStop(ctx, "salem", stop)
	require.NoError(t, err)
	b, err := r.ResolveUserStop(ctx, "salem", stop)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, UserStopID("salem", stop.Title, stop.Lat, stop.Lng), a.ID)
	assert.Equal(t, store.ImageSourceLinkSeed, a.ImageSource)

	all, err := s.ListCanonicalStops(ctx, "salem")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolveCatalogStopDeterministic(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := newResolver(s)

	a, err := r.ResolveCatalogStop(ctx, "salem", Stop{ID: "core-01", Title: "Witch House", Lat: 42.5216, Lng: -70.8982})
	require.NoError(t, err)
	b, err := r.ResolveCatalogStop(ctx, "salem", Stop{ID: "core-01", Title: "The Witch House", Lat: 42.6, Lng: -70.7})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, CatalogStopID("salem", "core-01"), a.ID)

	got, err := s.GetCanonicalStop(ctx, "salem", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Witch House", got.Title, "catalog edits refresh the row")
	assert.Equal(t, 42.6, got.Lat)
}

func TestResolveCatalogStopInsertImageSource(t *testing.T) {
	ctx := context.Background()
	r := newResolver(store.NewMemoryStore())

	placeholder, err := r.ResolveCatalogStop(ctx, "salem", Stop{ID: "p1", Title: "A", ImageURL: "/img/placeholder.png"})
	require.NoError(t, err)
	assert.Equal(t, store.ImageSourcePlaceholder, placeholder.ImageSource)

	blank, err := r.ResolveCatalogStop(ctx, "salem", Stop{ID: "p2", Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, store.ImageSourcePlaceholder, blank.ImageSource)
	assert.Nil(t, blank.ImageURL)

	linked, err := r.ResolveCatalogStop(ctx, "salem", Stop{ID: "p3", Title: "C", ImageURL: "https://cdn/c.jpg"})
	require.NoError(t, err)
	assert.Equal(t, store.ImageSourceLinkSeed, linked.ImageSource)
}

func TestImageNeverDowngradedFromAuthoritative(t *testing.T) {
	ctx := context.Background()
	for _, src := range []store.ImageSource{store.ImageSourcePlaces, store.ImageSourceCurated} {
		t.Run(string(src), func(t *testing.T) {
			s := store.NewMemoryStore()
			id := CatalogStopID("salem", "core-01")
			img := "https://places/photo.jpg"
			_, err := s.InsertCanonicalStop(ctx, store.CanonicalStop{
				ID: id, City: "salem", Title: "Witch House", Lat: 42.52, Lng: -70.89, ImageURL: &img, ImageSource: src,
			})
			require.NoError(t, err)

			r := newResolver(s)
			_, err = r.ResolveCatalogStop(ctx, "salem", Stop{ID: "core-01", Title: "Witch House", Lat: 42.52, Lng: -70.89, ImageURL: "https://link/other.jpg"})
			require.NoError(t, err)
			_, err = r.ResolveUserStop(ctx, "salem", Stop{Title: "Witch", Lat: 42.52, Lng: -70.89, ImageURL: "https://link/third.jpg"})
			require.NoError(t, err)

			got, err := s.GetCanonicalStop(ctx, "salem", id)
			require.NoError(t, err)
			assert.Equal(t, img, store.Deref(got.ImageURL))
			assert.Equal(t, src, got.ImageSource)
		})
	}
}

func TestImageSeededOverPlaceholder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	r := newResolver(s)

	first, err := r.ResolveCatalogStop(ctx, "salem", Stop{ID: "core-02", Title: "Common", ImageURL: "/placeholder.png"})
	require.NoError(t, err)
	require.Equal(t, store.ImageSourcePlaceholder, first.ImageSource)

	// A placeholder candidate never replaces anything.
	_, err = r.ResolveCatalogStop(ctx, "salem", Stop{ID: "core-02", Title: "Common", ImageURL: "/other-placeholder.png"})
	require.NoError(t, err)
	got, err := s.GetCanonicalStop(ctx, "salem", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "/placeholder.png", store.Deref(got.ImageURL))

	_, err = r.ResolveCatalogStop(ctx, "salem", Stop{ID: "core-02", Title: "Common", ImageURL: "https://link/common.jpg"})
	require.NoError(t, err)
	got, err = s.GetCanonicalStop(ctx, "salem", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://link/common.jpg", store.Deref(got.ImageURL))
	assert.Equal(t, store.ImageSourceLinkSeed, got.ImageSource)

	// An existing link_seed image is kept when only a placeholder arrives.
	_, err = r.ResolveCatalogStop(ctx, "salem", Stop{ID: "core-02", Title: "Common"})
	require.NoError(t, err)
	got, err = s.GetCanonicalStop(ctx, "salem", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://link/common.jpg", store.Deref(got.ImageURL))
}

type failingStops struct {
	store.CanonicalStops
}

var errStoreDown = errors.New("store down")

func (failingStops) GetCanonicalStop(context.Context, string, string) (*store.CanonicalStop, error) {
	return nil, errStoreDown
}

func (failingStops) ListCanonicalStops(context.Context, string) ([]store.CanonicalStop, error) {
	return nil, errStoreDown
}

func TestResolutionErrorsWrapped(t *testing.T) {
	ctx := context.Background()
	r := newResolver(failingStops{})

	_, err := r.ResolveCatalogStop(ctx, "salem", Stop{ID: "x"})
	assert.ErrorIs(t, err, ErrResolution)
	assert.ErrorIs(t, err, errStoreDown)

	_, err = r.ResolveUserStop(ctx, "salem", Stop{Title: "x"})
	assert.ErrorIs(t, err, ErrResolution)

	_, err = r.Resolve(ctx, "salem", Stop{Title: "no id"})
	assert.ErrorIs(t, err, ErrResolution)
}
