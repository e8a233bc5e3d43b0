// Package store persists canonical stops, route-stop mappings, narration
// assets and generation jobs. Backends: DynamoDB, SQL via gorm, and memory.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrJobTerminal is returned when writing to a job that already finished.
	ErrJobTerminal = errors.New("job is in a terminal state")
)

// CanonicalStops reads and writes canonical stop records.
type CanonicalStops interface {
	// GetCanonicalStop returns nil, nil when the stop does not exist.
	GetCanonicalStop(ctx context.Context, city, id string) (*CanonicalStop, error)
	ListCanonicalStops(ctx context.Context, city string) ([]CanonicalStop, error)
	// InsertCanonicalStop inserts stop unless its id is already taken, in
	// which case the existing row is returned unchanged.
	InsertCanonicalStop(ctx context.Context, stop CanonicalStop) (*CanonicalStop, error)
	UpdateCanonicalStop(ctx context.Context, stop CanonicalStop) error
}

// RouteStops is the route-stop mapping index.
type RouteStops interface {
	UpsertRouteStop(ctx context.Context, m RouteStopMapping) error
	// ListRouteStops returns a route's mappings ordered by position.
	ListRouteStops(ctx context.Context, kind RouteKind, routeID string) ([]RouteStopMapping, error)
}

// Assets reads and writes narration assets.
type Assets interface {
	// GetAsset returns nil, nil when no asset exists yet.
	GetAsset(ctx context.Context, canonicalStopID, persona string) (*NarrationAsset, error)
	UpsertAsset(ctx context.Context, a NarrationAsset) error
}

// Jobs is the job progress tracker.
type Jobs interface {
	CreateJob(ctx context.Context, job GenerationJob) error
	// UpdateJob overwrites status, message and progress of a running job.
	UpdateJob(ctx context.Context, id string, status JobStatus, message string, progress int) error
	// FinishJob moves a job into a terminal status.
	FinishJob(ctx context.Context, id string, status JobStatus, message string, errMsg *string) error
	GetJob(ctx context.Context, id string) (*GenerationJob, error)
	// FindActiveJob returns the newest non-terminal job for routeID, or nil.
	FindActiveJob(ctx context.Context, routeID string) (*GenerationJob, error)
}

// Store is the full persistence surface used by the pipeline.
type Store interface {
	CanonicalStops
	RouteStops
	Assets
	Jobs
	Close() error
}

// FailJob marks a job failed with errMsg as both message and error.
func FailJob(ctx context.Context, jobs Jobs, id, errMsg string) error {
	return jobs.FinishJob(ctx, id, JobFailed, "Failed: "+errMsg, NormalizeOptionalText(errMsg))
}

func finishProgress(status JobStatus, current int) int {
	if status == JobFailed {
		return current
	}
	return 100
}
