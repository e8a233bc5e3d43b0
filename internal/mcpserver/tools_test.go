package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheath/echojam/internal/jobs"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/pipeline"
	"github.com/rheath/echojam/internal/store"
)

type blockingRunner struct {
	store   *store.MemoryStore
	release chan struct{}
	got     chan pipeline.Request
}

func (b *blockingRunner) Execute(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	b.got <- req
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := b.store.FinishJob(ctx, req.JobID, store.JobReady, "Narration ready", nil); err != nil {
		return nil, err
	}
	return &pipeline.Result{Status: store.JobReady}, nil
}

const tourJSON = `{
  "id": "freedom-trail",
  "city": "Boston",
  "transport": "walk",
  "lengthMinutes": 30,
  "stops": [
    {"id": "old-north", "title": "Old North Church", "lat": 42.3663, "lng": -71.0544},
    {"id": "revere-house", "title": "Paul Revere House", "lat": 42.3637, "lng": -71.0537}
  ]
}`

func newHandlers(t *testing.T) (*Handlers, *blockingRunner, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	runner := &blockingRunner{store: st, release: make(chan struct{}), got: make(chan pipeline.Request, 4)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := jobs.NewManager(context.Background(), st, runner, "", 2, logger)
	t.Cleanup(func() {
		select {
		case <-runner.release:
		default:
			close(runner.release)
		}
		mgr.Wait()
	})
	cfg := Config{Personas: []persona.Name{persona.Adult}, ScriptAPIKey: "server-key"}
	return NewHandlers(mgr, st, cfg, logger), runner, st
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "unexpected tool error: %+v", res.Content)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestGenerateNarrationStartsJob(t *testing.T) {
	h, runner, st := newHandlers(t)
	ctx := context.Background()

	res, err := h.HandleGenerateNarration(ctx, call(map[string]any{"tour": tourJSON, "personas": "adult,preteen"}))
	require.NoError(t, err)
	out := decode(t, res)
	id, _ := out["job_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "queued", out["status"])

	req := <-runner.got
	assert.Equal(t, "freedom-trail", req.RouteID)
	assert.Equal(t, store.RouteKindPreset, req.RouteKind)
	assert.Equal(t, []persona.Name{persona.Adult, persona.Preteen}, req.Personas)
	assert.Equal(t, "server-key", req.ScriptAPIKey)
	assert.Len(t, req.Stops, 2)

	// A second request for the same tour points at the running job.
	res, err = h.HandleGenerateNarration(ctx, call(map[string]any{"tour": tourJSON}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.Equal(t, id, out["job_id"])
	assert.Equal(t, "in_progress", out["status"])

	close(runner.release)
	h.jobs.Wait()

	res, err = h.HandleGetJob(ctx, call(map[string]any{"job_id": id}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.Equal(t, "ready", out["status"])
	assert.EqualValues(t, 100, out["progress"])
	assert.Equal(t, "freedom-trail", out["routeId"])

	job, err := st.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.JobReady, job.Status)
}

func TestGenerateNarrationRejectsBadInput(t *testing.T) {
	h, _, _ := newHandlers(t)
	ctx := context.Background()

	cases := map[string]map[string]any{
		"missing tour":  {},
		"not json":      {"tour": "{"},
		"no stops":      {"tour": `{"id":"x","city":"Boston"}`},
		"bad persona":   {"tour": tourJSON, "personas": "toddler"},
		"mix too large": {"tour": `{"id":"m","kind":"custom","city":"Boston","transport":"walk","lengthMinutes":30,"stops":[{"title":"a"},{"title":"b"},{"title":"c"},{"title":"d"},{"title":"e"},{"title":"f"}]}`},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := h.HandleGenerateNarration(ctx, call(args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestGetJobErrors(t *testing.T) {
	h, _, _ := newHandlers(t)
	ctx := context.Background()

	res, err := h.HandleGetJob(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.HandleGetJob(ctx, call(map[string]any{"job_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCancelJob(t *testing.T) {
	h, runner, st := newHandlers(t)
	ctx := context.Background()

	res, err := h.HandleGenerateNarration(ctx, call(map[string]any{"tour": tourJSON}))
	require.NoError(t, err)
	id := decode(t, res)["job_id"].(string)
	<-runner.got

	res, err = h.HandleCancelJob(ctx, call(map[string]any{"job_id": id}))
	require.NoError(t, err)
	decode(t, res)
	h.jobs.Wait()

	job, err := st.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, job.Status)

	res, err = h.HandleCancelJob(ctx, call(map[string]any{"job_id": id}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestValidateMix(t *testing.T) {
	h, _, _ := newHandlers(t)
	ctx := context.Background()

	res, err := h.HandleValidateMix(ctx, call(map[string]any{"length_minutes": float64(90), "transport": "drive", "count": float64(20)}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Equal(t, true, out["valid"])
	assert.EqualValues(t, 2, out["min_stops"])
	assert.EqualValues(t, 20, out["max_stops"])

	res, err = h.HandleValidateMix(ctx, call(map[string]any{"length_minutes": float64(90), "transport": "drive", "count": float64(21)}))
	require.NoError(t, err)
	out = decode(t, res)
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out["error"], "at most 20")

	res, err = h.HandleValidateMix(ctx, call(map[string]any{"length_minutes": float64(45), "count": float64(3)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestToolDefsHaveRequiredArgs(t *testing.T) {
	for _, tool := range ToolDefs() {
		assert.NotEmpty(t, tool.Description, tool.Name)
		for _, r := range tool.InputSchema.Required {
			assert.Contains(t, tool.InputSchema.Properties, r, tool.Name)
		}
	}
}
