package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps everything in process. It backs local CLI runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	stops    map[string]CanonicalStop
	mappings map[string]RouteStopMapping
	assets   map[string]NarrationAsset
	jobs     map[string]GenerationJob
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stops:    make(map[string]CanonicalStop),
		mappings: make(map[string]RouteStopMapping),
		assets:   make(map[string]NarrationAsset),
		jobs:     make(map[string]GenerationJob),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func stopKey(city, id string) string { return strings.ToLower(city) + "#" + id }

func mappingKey(kind RouteKind, routeID, stopID string) string {
	return string(kind) + "#" + routeID + "#" + stopID
}

func assetKey(canonicalID, persona string) string { return canonicalID + "#" + persona }

func (s *MemoryStore) GetCanonicalStop(_ context.Context, city, id string) (*CanonicalStop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stop, ok := s.stops[stopKey(city, id)]
	if !ok {
		return nil, nil
	}
	return &stop, nil
}

func (s *MemoryStore) ListCanonicalStops(_ context.Context, city string) ([]CanonicalStop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CanonicalStop
	for _, stop := range s.stops {
		if strings.EqualFold(stop.City, city) {
			out = append(out, stop)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) InsertCanonicalStop(_ context.Context, stop CanonicalStop) (*CanonicalStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stopKey(stop.City, stop.ID)
	if existing, ok := s.stops[key]; ok {
		return &existing, nil
	}
	now := s.now()
	stop = normalizeStop(stop)
	stop.CreatedAt, stop.UpdatedAt = now, now
	s.stops[key] = stop
	return &stop, nil
}

func (s *MemoryStore) UpdateCanonicalStop(_ context.Context, stop CanonicalStop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stopKey(stop.City, stop.ID)
	existing, ok := s.stops[key]
	if !ok {
		return fmt.Errorf("canonical stop %s: %w", stop.ID, ErrNotFound)
	}
	stop = normalizeStop(stop)
	stop.CreatedAt = existing.CreatedAt
	stop.UpdatedAt = s.now()
	s.stops[key] = stop
	return nil
}

func (s *MemoryStore) UpsertRouteStop(_ context.Context, m RouteStopMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.UpdatedAt = s.now()
	s.mappings[mappingKey(m.RouteKind, m.RouteID, m.StopID)] = m
	return nil
}

func (s *MemoryStore) ListRouteStops(_ context.Context, kind RouteKind, routeID string) ([]RouteStopMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RouteStopMapping
	for _, m := range s.mappings {
		if m.RouteKind == kind && m.RouteID == routeID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) GetAsset(_ context.Context, canonicalStopID, persona string) (*NarrationAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[assetKey(canonicalStopID, persona)]
	if !ok {
		return nil, nil
	}
	a = normalizeAsset(a)
	return &a, nil
}

func (s *MemoryStore) UpsertAsset(_ context.Context, a NarrationAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a = normalizeAsset(a)
	a.UpdatedAt = s.now()
	s.assets[assetKey(a.CanonicalStopID, a.Persona)] = a
	return nil
}

func (s *MemoryStore) CreateJob(_ context.Context, job GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	now := s.now()
	job = normalizeJob(job)
	job.CreatedAt, job.UpdatedAt = now, now
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, id string, status JobStatus, message string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s: %w", id, ErrJobTerminal)
	}
	job.Status, job.Message, job.Progress = status, message, progress
	job.UpdatedAt = s.now()
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) FinishJob(_ context.Context, id string, status JobStatus, message string, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s: %w", id, ErrJobTerminal)
	}
	job.Status, job.Message, job.Error = status, message, NormalizePtr(errMsg)
	job.Progress = finishProgress(status, job.Progress)
	job.UpdatedAt = s.now()
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *MemoryStore) FindActiveJob(_ context.Context, routeID string) (*GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *GenerationJob
	for _, job := range s.jobs {
		if job.RouteID != routeID || job.Status.Terminal() {
			continue
		}
		if found == nil || job.CreatedAt.After(found.CreatedAt) {
			j := job
			found = &j
		}
	}
	return found, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
