package store

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ImageSource records where a canonical stop's image came from. Places and
// curated images are authoritative and never replaced by link-derived ones.
type ImageSource string

const (
	ImageSourcePlaces      ImageSource = "places"
	ImageSourceCurated     ImageSource = "curated"
	ImageSourcePlaceholder ImageSource = "placeholder"
	ImageSourceLinkSeed    ImageSource = "link_seed"
)

// Authoritative reports whether the image must not be overwritten by seeding.
func (s ImageSource) Authoritative() bool {
	return s == ImageSourcePlaces || s == ImageSourceCurated
}

// RouteKind classifies the tour a mapping belongs to.
type RouteKind string

const (
	RouteKindPreset RouteKind = "preset"
	RouteKindCustom RouteKind = "custom"
)

// Valid reports whether k is a known route kind.
func (k RouteKind) Valid() bool {
	return k == RouteKindPreset || k == RouteKindCustom
}

// AssetStatus is the lifecycle state of a narration asset.
type AssetStatus string

const (
	AssetPending    AssetStatus = "pending"
	AssetGenerating AssetStatus = "generating"
	AssetReady      AssetStatus = "ready"
	AssetFailed     AssetStatus = "failed"
)

// JobStatus represents the state of a narration generation job.
type JobStatus string

const (
	JobQueued            JobStatus = "queued"
	JobGeneratingScript  JobStatus = "generating_script"
	JobGeneratingAudio   JobStatus = "generating_audio"
	JobReady             JobStatus = "ready"
	JobReadyWithWarnings JobStatus = "ready_with_warnings"
	JobFailed            JobStatus = "failed"
)

// Terminal reports whether the job can no longer change.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobReady, JobReadyWithWarnings, JobFailed:
		return true
	}
	return false
}

// CanonicalStop is a deduplicated physical place shared by any number of tours.
type CanonicalStop struct {
	ID          string
	City        string
	Title       string
	Lat         float64
	Lng         float64
	ImageURL    *string
	ImageSource ImageSource
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RouteStopMapping joins a tour-local stop to its canonical stop.
type RouteStopMapping struct {
	RouteKind       RouteKind
	RouteID         string
	StopID          string
	CanonicalStopID string
	Position        int
	UpdatedAt       time.Time
}

// NarrationAsset is the unit of cross-tour reuse: one per canonical stop and persona.
type NarrationAsset struct {
	CanonicalStopID string
	Persona         string
	Script          *string
	AudioURL        *string
	Status          AssetStatus
	Error           *string
	UpdatedAt       time.Time
}

// GenerationJob is the persisted job record polled by callers.
type GenerationJob struct {
	ID        string
	RouteKind RouteKind
	RouteID   string
	Status    JobStatus
	Progress  int
	Message   string
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobView is the polling shape of a job.
type JobView struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Error     *string   `json:"error"`
	RouteID   string    `json:"routeId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View returns the polling representation of j.
func (j GenerationJob) View() JobView {
	return JobView{
		ID:        j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Message:   j.Message,
		Error:     j.Error,
		RouteID:   j.RouteID,
		UpdatedAt: j.UpdatedAt,
	}
}

// NewJobID generates a ULID for a new job.
func NewJobID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}
