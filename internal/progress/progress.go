package progress

import "time"

// Stage identifies which part of a narration job is active.
type Stage string

const (
	StageQueued   Stage = "queued"
	StageScript   Stage = "script"
	StageAudio    Stage = "audio"
	StageComplete Stage = "complete"
	StageFailed   Stage = "failed"
)

// Event carries progress information from the orchestrator to the renderer.
type Event struct {
	JobID   string
	Stage   Stage
	Message string
	Percent int // 0–100, as persisted on the job
	Done    int
	Total   int
	Elapsed time.Duration
	Error   error
	// Warnings and UsableAudio are set on StageComplete.
	Warnings    int
	UsableAudio int
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct int, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}

// Percent converts completed units into a job progress value. It never
// reports 100 for an unfinished job; only finalization does that.
func Percent(done, total int) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	pct := done * 100 / total
	if pct > 99 {
		pct = 99
	}
	return pct
}
