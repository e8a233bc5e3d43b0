package jobs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/canonical"
	"github.com/rheath/echojam/internal/genmode"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/pipeline"
	"github.com/rheath/echojam/internal/store"
)

type fakeRunner struct {
	store *store.MemoryStore
	block chan struct{}

	mu   sync.Mutex
	reqs []pipeline.Request
	ctxs []context.Context
}

func (f *fakeRunner) Execute(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.ctxs = append(f.ctxs, ctx)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.store.FinishJob(ctx, req.JobID, store.JobReady, "Narration ready", nil); err != nil {
		return nil, err
	}
	return &pipeline.Result{Status: store.JobReady}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(routeID string) pipeline.Request {
	return pipeline.Request{
		RouteKind: store.RouteKindPreset,
		RouteID:   routeID,
		City:      "Boston",
		Personas:  []persona.Name{persona.Adult},
		Stops:     []canonical.Stop{{ID: "a", Title: "Old State House", Lat: 42.3588, Lng: -71.0577}},
	}
}

func TestStartJobRunsInBackground(t *testing.T) {
	st := store.NewMemoryStore()
	runner := &fakeRunner{store: st}
	modeFile := filepath.Join(t.TempDir(), "mode.json")
	require.NoError(t, os.WriteFile(modeFile, []byte(`{"mode":"force_regenerate_audio"}`), 0o644))

	m := NewManager(context.Background(), st, runner, modeFile, 2, discard())
	id, err := m.StartJob(context.Background(), request("freedom-trail"))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	m.Wait()

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, id, runner.reqs[0].JobID)
	assert.Equal(t, genmode.ForceRegenerateAudio, runner.reqs[0].Switch.Mode)

	job, err := st.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.JobReady, job.Status)
	assert.Equal(t, 0, m.Running())
}

func TestStartJobRejectsInFlightRoute(t *testing.T) {
	st := store.NewMemoryStore()
	runner := &fakeRunner{store: st, block: make(chan struct{})}
	m := NewManager(context.Background(), st, runner, "", 5, discard())

	first, err := m.StartJob(context.Background(), request("freedom-trail"))
	require.NoError(t, err)

	active, err := m.StartJob(context.Background(), request("freedom-trail"))
	require.ErrorIs(t, err, ErrJobInFlight)
	assert.Equal(t, first, active)

	_, err = m.StartJob(context.Background(), request("harbor-walk"))
	require.NoError(t, err)

	close(runner.block)
	m.Wait()

	_, err = m.StartJob(context.Background(), request("freedom-trail"))
	require.NoError(t, err, "a finished route can be generated again")
	m.Wait()
}

func TestStartJobEnforcesLimit(t *testing.T) {
	st := store.NewMemoryStore()
	runner := &fakeRunner{store: st, block: make(chan struct{})}
	m := NewManager(context.Background(), st, runner, "", 1, discard())

	_, err := m.StartJob(context.Background(), request("a"))
	require.NoError(t, err)
	_, err = m.StartJob(context.Background(), request("b"))
	assert.ErrorIs(t, err, ErrBusy)

	close(runner.block)
	m.Wait()
}

func TestStartJobValidatesRoute(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewManager(context.Background(), st, &fakeRunner{store: st}, "", 1, discard())

	req := request("a")
	req.RouteKind = "loop"
	_, err := m.StartJob(context.Background(), req)
	assert.ErrorIs(t, err, pipeline.ErrConfig)
}

func TestShutdownMarksJobFailed(t *testing.T) {
	st := store.NewMemoryStore()
	runner := &fakeRunner{store: st, block: make(chan struct{})}
	base, cancel := context.WithCancel(context.Background())
	m := NewManager(base, st, runner, "", 1, discard())

	id, err := m.StartJob(context.Background(), request("a"))
	require.NoError(t, err)
	cancel()
	m.Wait()

	job, err := st.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, job.Status)
	assert.Equal(t, "Failed: "+shutdownMessage, job.Message)
}

func TestCancelJob(t *testing.T) {
	st := store.NewMemoryStore()
	runner := &fakeRunner{store: st, block: make(chan struct{})}
	m := NewManager(context.Background(), st, runner, "", 1, discard())

	id, err := m.StartJob(context.Background(), request("a"))
	require.NoError(t, err)
	assert.True(t, m.CancelJob(id))
	m.Wait()

	assert.False(t, m.CancelJob(id))
	job, err := st.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, job.Status)
}

func TestFinishedJobReleasesRunContext(t *testing.T) {
	st := store.NewMemoryStore()
	runner := &fakeRunner{store: st}
	m := NewManager(context.Background(), st, runner, "", 1, discard())

	id, err := m.StartJob(context.Background(), request("a"))
	require.NoError(t, err)
	m.Wait()

	require.Len(t, runner.ctxs, 1)
	assert.Error(t, runner.ctxs[0].Err(), "run context is cancelled once the job returns")
	assert.Zero(t, m.Running())
	assert.False(t, m.CancelJob(id))

	job, err := st.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.JobReady, job.Status, "release does not rewrite a finished job")
}
