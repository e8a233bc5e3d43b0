// Package pipeline runs narration jobs: resolve each stop, write scripts for
// every persona, then synthesize and upload audio, reporting progress on the
// job record as it goes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rheath/echojam/internal/canonical"
	"github.com/rheath/echojam/internal/genmode"
	"github.com/rheath/echojam/internal/metrics"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/progress"
	"github.com/rheath/echojam/internal/retry"
	"github.com/rheath/echojam/internal/script"
	"github.com/rheath/echojam/internal/storage"
	"github.com/rheath/echojam/internal/store"
)

var (
	// ErrConfig is returned before any per-stop work when the run cannot start.
	ErrConfig = errors.New("invalid generation request")
	// ErrNoUsableAudio fails a job that finished without a single audio URL.
	ErrNoUsableAudio = errors.New("no usable audio was produced")
)

var tracer = otel.Tracer("github.com/rheath/echojam/internal/pipeline")

// Error tags a hard failure with the stage that produced it.
type Error struct {
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// SpeechSynthesizer turns a script into audio bytes for a persona.
// *tts.Synthesizer satisfies it.
type SpeechSynthesizer interface {
	Name() string
	RequiresAPIKey() bool
	Synthesize(ctx context.Context, apiKey string, name persona.Name, text string) ([]byte, error)
}

// Request describes one narration job.
type Request struct {
	JobID         string
	RouteKind     store.RouteKind
	RouteID       string
	City          string
	TransportMode string
	LengthMinutes int
	Personas      []persona.Name
	Stops         []canonical.Stop
	ScriptAPIKey  string
	SpeechAPIKey  string
	// Switch is read once before the run and never reloaded mid-run.
	Switch genmode.Switch
}

// Options tunes external calls.
type Options struct {
	CallTimeout    time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// DefaultOptions returns the timeouts and retry policy used in production.
func DefaultOptions() Options {
	return Options{
		CallTimeout:    90 * time.Second,
		RetryAttempts:  retry.DefaultAttempts,
		RetryBaseDelay: retry.DefaultBaseDelay,
	}
}

// Deps are the collaborators of an Orchestrator. Metrics and Progress are optional.
type Deps struct {
	Store    store.Store
	Scripts  script.Generator
	Speech   SpeechSynthesizer
	Uploader storage.Uploader
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Progress progress.Callback
}

// Orchestrator runs narration jobs serially, one unit at a time.
type Orchestrator struct {
	store      store.Store
	resolver   *canonical.Resolver
	scripts    script.Generator
	speech     SpeechSynthesizer
	uploader   storage.Uploader
	logger     *slog.Logger
	metrics    *metrics.Metrics
	onProgress progress.Callback
	opts       Options
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onProgress := deps.Progress
	if onProgress == nil {
		onProgress = progress.NopCallback
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	return &Orchestrator{
		store:      deps.Store,
		resolver:   canonical.NewResolver(deps.Store, logger),
		scripts:    deps.Scripts,
		speech:     deps.Speech,
		uploader:   deps.Uploader,
		logger:     logger,
		metrics:    deps.Metrics,
		onProgress: onProgress,
		opts:       opts,
	}
}

// Result summarizes a finished run.
type Result struct {
	Status      store.JobStatus
	Units       int
	Warnings    int
	LastWarning string
	UsableAudio int
	Elapsed     time.Duration
}

// Execute runs the job and, on any hard failure, marks it failed with the
// error text before returning the error.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := o.Run(ctx, req)
	if err == nil {
		return res, nil
	}

	// The run context may already be cancelled; the failure must still land.
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if req.JobID != "" {
		if ferr := store.FailJob(failCtx, o.store, req.JobID, err.Error()); ferr != nil {
			o.logger.ErrorContext(ctx, "mark job failed", "job_id", req.JobID, "error", ferr)
		}
	}
	o.metrics.JobFinished(string(store.JobFailed), time.Since(start))
	ev := progress.NewEvent(progress.StageFailed, "Failed", 0, start)
	ev.JobID, ev.Error = req.JobID, err
	o.onProgress(ev)
	return res, err
}

// Run executes both phases and finalizes the job. It returns an error only
// for hard failures: bad configuration, zero usable audio, or a job record
// that cannot be finalized. Per-stop problems become warnings.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "job.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", req.JobID),
		attribute.String("route.id", req.RouteID),
		attribute.Int("job.stops", len(req.Stops)),
		attribute.String("generation.mode", string(req.Switch.Mode)),
	)

	personas, err := o.validate(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r := &run{
		o:        o,
		req:      req,
		personas: personas,
		resolved: make([]*store.CanonicalStop, len(req.Stops)),
		total:    len(req.Stops) * len(personas) * 2,
		start:    start,
		logger: o.logger.With(
			"job_id", req.JobID,
			"route_id", req.RouteID,
			"mode", string(req.Switch.Mode),
		),
	}
	r.logger.InfoContext(ctx, "narration job started",
		"stops", len(req.Stops),
		"personas", len(personas),
		"units", r.total,
		"replay_overrides", req.Switch.ReplayCount(),
	)

	err = r.scriptPhase(ctx)
	if err == nil {
		err = r.audioPhase(ctx)
	}
	var res *Result
	if err == nil {
		res, err = r.finalize(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.Int("job.warnings", res.Warnings),
		attribute.Int("job.usable_audio", res.UsableAudio),
	)
	return res, nil
}

func (o *Orchestrator) validate(req Request) ([]persona.Persona, error) {
	fail := func(msg string) error {
		return &Error{Stage: "config", Message: msg, Err: ErrConfig}
	}
	switch {
	case o.store == nil:
		return nil, fail("store is not configured")
	case o.scripts == nil:
		return nil, fail("script generator is not configured")
	case o.speech == nil:
		return nil, fail("speech synthesizer is not configured")
	case o.uploader == nil:
		return nil, fail("audio uploader is not configured")
	case strings.TrimSpace(req.JobID) == "":
		return nil, fail("job id is required")
	case strings.TrimSpace(req.RouteID) == "":
		return nil, fail("route id is required")
	case !req.RouteKind.Valid():
		return nil, fail(fmt.Sprintf("unknown route kind %q", req.RouteKind))
	case len(req.Stops) == 0:
		return nil, fail("route has no stops")
	case len(req.Personas) == 0:
		return nil, fail("at least one persona is required")
	case o.scripts.RequiresAPIKey() && strings.TrimSpace(req.ScriptAPIKey) == "":
		return nil, fail(fmt.Sprintf("%s script provider requires an API key", o.scripts.Name()))
	case o.speech.RequiresAPIKey() && strings.TrimSpace(req.SpeechAPIKey) == "":
		return nil, fail(fmt.Sprintf("%s speech provider requires an API key", o.speech.Name()))
	}

	personas := make([]persona.Persona, 0, len(req.Personas))
	seen := make(map[persona.Name]bool, len(req.Personas))
	for _, name := range req.Personas {
		p, ok := persona.Lookup(name)
		if !ok {
			return nil, fail(fmt.Sprintf("unknown persona %q", name))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		personas = append(personas, p)
	}
	return personas, nil
}
