// Package jobs launches narration jobs in the background and returns their
// ids immediately. Callers poll the job record for progress.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rheath/echojam/internal/genmode"
	"github.com/rheath/echojam/internal/observability"
	"github.com/rheath/echojam/internal/pipeline"
	"github.com/rheath/echojam/internal/store"
)

var (
	// ErrJobInFlight is returned when the route already has a running job.
	// Callers should poll that job or retry later.
	ErrJobInFlight = errors.New("a narration job is already running for this route")
	// ErrBusy is returned when the manager is at its concurrency limit.
	ErrBusy = errors.New("max concurrent jobs reached")
)

const shutdownMessage = "server shutdown during processing"

var tracer = otel.Tracer("github.com/rheath/echojam/internal/jobs")

// Runner executes one job to completion. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Execute(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Manager starts jobs and tracks the ones still running.
type Manager struct {
	jobs     store.Jobs
	runner   Runner
	modeFile string
	log      *slog.Logger
	baseCtx  context.Context // cancelled on SIGTERM for graceful shutdown

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	routes   map[string]string // routeID -> jobID for runs started here
	maxTasks int
	running  int
	wg       sync.WaitGroup
}

// NewManager creates a job manager. baseCtx should be cancelled on SIGTERM so
// running jobs stop and are marked failed. modeFile is the generation mode
// switch, read at the start of every run.
func NewManager(baseCtx context.Context, jobs store.Jobs, runner Runner, modeFile string, maxTasks int, logger *slog.Logger) *Manager {
	if maxTasks <= 0 {
		maxTasks = 5
	}
	return &Manager{
		jobs:     jobs,
		runner:   runner,
		modeFile: modeFile,
		log:      logger,
		baseCtx:  baseCtx,
		cancels:  make(map[string]context.CancelFunc),
		routes:   make(map[string]string),
		maxTasks: maxTasks,
	}
}

// StartJob records a queued job for req and runs it in a goroutine. The
// returned id is the only link between the caller and the run.
func (m *Manager) StartJob(ctx context.Context, req pipeline.Request) (string, error) {
	if !req.RouteKind.Valid() || req.RouteID == "" {
		return "", fmt.Errorf("%w: route kind and id are required", pipeline.ErrConfig)
	}

	active, err := m.jobs.FindActiveJob(ctx, req.RouteID)
	if err != nil {
		return "", fmt.Errorf("check active job: %w", err)
	}
	if active != nil {
		return active.ID, fmt.Errorf("%w: job %s is %s", ErrJobInFlight, active.ID, active.Status)
	}

	id, err := store.NewJobID()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if other, ok := m.routes[req.RouteID]; ok {
		m.mu.Unlock()
		return other, fmt.Errorf("%w: job %s is starting", ErrJobInFlight, other)
	}
	if m.running >= m.maxTasks {
		m.mu.Unlock()
		return "", fmt.Errorf("%w (%d)", ErrBusy, m.maxTasks)
	}
	m.running++
	m.routes[req.RouteID] = id

	// Derive the run context from baseCtx rather than the request context,
	// which ends when the response is sent. Keep the request's trace.
	runCtx := observability.DetachTraceContextFrom(ctx, m.baseCtx)
	runCtx, cancel := context.WithCancel(runCtx)
	m.cancels[id] = cancel
	m.mu.Unlock()

	err = m.jobs.CreateJob(ctx, store.GenerationJob{
		ID:        id,
		RouteKind: req.RouteKind,
		RouteID:   req.RouteID,
		Status:    store.JobQueued,
		Message:   "Queued",
	})
	if err != nil {
		cancel()
		m.release(id, req.RouteID)
		return "", fmt.Errorf("create job: %w", err)
	}

	req.JobID = id
	m.wg.Add(1)
	go m.run(runCtx, req)
	return id, nil
}

// CancelJob stops a running job. The job is marked failed.
func (m *Manager) CancelJob(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

// Running returns the number of jobs in flight.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Wait blocks until every started job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) release(id, routeID string) {
	m.mu.Lock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	if m.routes[routeID] == id {
		delete(m.routes, routeID)
	}
	m.running--
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, req pipeline.Request) {
	defer m.wg.Done()
	ctx, span := tracer.Start(ctx, "job.launch",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.String("route.id", req.RouteID),
		),
	)
	defer span.End()

	log := m.log.With("job_id", req.JobID, "route_id", req.RouteID)

	defer func() {
		// A job cut off by shutdown must not look stuck. Execute has usually
		// failed it already, in which case the record is terminal.
		if ctx.Err() != nil {
			failCtx, failCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer failCancel()
			err := store.FailJob(failCtx, m.jobs, req.JobID, shutdownMessage)
			if err != nil && !errors.Is(err, store.ErrJobTerminal) {
				log.Warn("mark job failed after shutdown", "error", err)
			} else if err == nil {
				log.Info("Marked job as failed due to shutdown")
			}
		}
		m.release(req.JobID, req.RouteID)
	}()

	req.Switch = genmode.Load(m.modeFile, log)
	span.SetAttributes(attribute.String("generation.mode", string(req.Switch.Mode)))

	start := time.Now()
	log.InfoContext(ctx, "Job starting",
		"mode", req.Switch.Mode,
		"stops", len(req.Stops),
		"personas", len(req.Personas),
	)
	res, err := m.runner.Execute(ctx, req)
	elapsed := time.Since(start).Round(time.Second)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
		log.ErrorContext(ctx, "Job failed", "error", err, "elapsed", elapsed.String())
		return
	}
	span.SetStatus(codes.Ok, string(res.Status))
	log.InfoContext(ctx, "Job complete",
		"status", res.Status,
		"warnings", res.Warnings,
		"usable_audio", res.UsableAudio,
		"elapsed", elapsed.String(),
	)
}
