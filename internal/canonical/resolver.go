// Package canonical maps tour-local stops onto shared canonical stops so that
// narration is produced once per physical place.
package canonical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/rheath/echojam/internal/store"
)

// ErrResolution wraps every persistence failure during resolution.
var ErrResolution = errors.New("canonical stop resolution failed")

// Stop is a tour-local stop as supplied by a route.
type Stop struct {
	ID       string  `json:"id" yaml:"id"`
	Title    string  `json:"title" yaml:"title"`
	Lat      float64 `json:"lat" yaml:"lat"`
	Lng      float64 `json:"lng" yaml:"lng"`
	ImageURL string  `json:"imageUrl,omitempty" yaml:"image"`
	// UserAuthored stops are matched by proximity instead of catalog id.
	UserAuthored bool `json:"userAuthored,omitempty" yaml:"user_authored"`
}

// Resolver finds or creates canonical stops.
type Resolver struct {
	stops  store.CanonicalStops
	logger *slog.Logger
}

// NewResolver creates a resolver over the given canonical stop store.
func NewResolver(stops store.CanonicalStops, logger *slog.Logger) *Resolver {
	return &Resolver{stops: stops, logger: logger}
}

// Resolve dispatches to the catalog or user path based on the stop's origin.
func (r *Resolver) Resolve(ctx context.Context, city string, stop Stop) (*store.CanonicalStop, error) {
	if stop.UserAuthored {
		return r.ResolveUserStop(ctx, city, stop)
	}
	return r.ResolveCatalogStop(ctx, city, stop)
}

// ResolveCatalogStop resolves a catalog stop by its deterministic id,
// refreshing the stored city, title and coordinates when they drifted.
func (r *Resolver) ResolveCatalogStop(ctx context.Context, city string, stop Stop) (*store.CanonicalStop, error) {
	if strings.TrimSpace(stop.ID) == "" {
		return nil, fmt.Errorf("%w: catalog stop has no id", ErrResolution)
	}
	cityKey := NormalizeCity(city)
	id := CatalogStopID(cityKey, stop.ID)

	existing, err := r.stops.GetCanonicalStop(ctx, cityKey, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	if existing == nil {
		return r.insert(ctx, id, cityKey, stop)
	}

	changed := seedImage(existing, stop.ImageURL)
	if existing.City != cityKey || existing.Title != stop.Title || existing.Lat != stop.Lat || existing.Lng != stop.Lng {
		existing.City, existing.Title, existing.Lat, existing.Lng = cityKey, stop.Title, stop.Lat, stop.Lng
		changed = true
	}
	if changed {
		if err := r.stops.UpdateCanonicalStop(ctx, *existing); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolution, err)
		}
	}
	return existing, nil
}

// ResolveUserStop reuses the nearest canonical stop in the city when it lies
// within MatchRadiusMeters, otherwise finds or creates one keyed on the
// stop's title and coordinates.
func (r *Resolver) ResolveUserStop(ctx context.Context, city string, stop Stop) (*store.CanonicalStop, error) {
	cityKey := NormalizeCity(city)
	candidates, err := r.stops.ListCanonicalStops(ctx, cityKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	nearest, dist := nearestStop(candidates, stop.Lat, stop.Lng)
	if nearest != nil && dist <= MatchRadiusMeters {
		r.logger.Debug("user stop matched canonical stop",
			"stop_id", stop.ID, "canonical_id", nearest.ID, "distance_m", math.Round(dist*10)/10)
		return r.seed(ctx, nearest, stop.ImageURL)
	}

	id := UserStopID(cityKey, stop.Title, stop.Lat, stop.Lng)
	existing, err := r.stops.GetCanonicalStop(ctx, cityKey, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	if existing != nil {
		return r.seed(ctx, existing, stop.ImageURL)
	}
	return r.insert(ctx, id, cityKey, stop)
}

func (r *Resolver) seed(ctx context.Context, stop *store.CanonicalStop, candidate string) (*store.CanonicalStop, error) {
	if !seedImage(stop, candidate) {
		return stop, nil
	}
	if err := r.stops.UpdateCanonicalStop(ctx, *stop); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	return stop, nil
}

func (r *Resolver) insert(ctx context.Context, id, cityKey string, stop Stop) (*store.CanonicalStop, error) {
	image, source := initialImage(stop.ImageURL)
	created, err := r.stops.InsertCanonicalStop(ctx, store.CanonicalStop{
		ID:          id,
		City:        cityKey,
		Title:       stop.Title,
		Lat:         stop.Lat,
		Lng:         stop.Lng,
		ImageURL:    image,
		ImageSource: source,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	if created.ImageSource != source || store.Deref(created.ImageURL) != store.Deref(image) {
		// Lost an insert race; the winner's row may still take our image.
		return r.seed(ctx, created, stop.ImageURL)
	}
	return created, nil
}

func nearestStop(candidates []store.CanonicalStop, lat, lng float64) (*store.CanonicalStop, float64) {
	var best *store.CanonicalStop
	bestDist := math.Inf(1)
	for i := range candidates {
		d := DistanceMeters(lat, lng, candidates[i].Lat, candidates[i].Lng)
		if d < bestDist {
			best, bestDist = &candidates[i], d
		}
	}
	return best, bestDist
}
