package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rheath/echojam/internal/jobs"
	"github.com/rheath/echojam/internal/mix"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/store"
	"github.com/rheath/echojam/internal/tour"
)

var tracer = otel.Tracer("github.com/rheath/echojam/internal/mcpserver")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_tour_narration",
			Description: "Generate narration for a tour. Starts an async job and returns a job ID. Use get_generation_job to poll progress. Scripts and audio already generated for the same places are reused.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"tour": map[string]any{
						"type":        "string",
						"description": `Tour as JSON: {"id","kind":"preset|custom","city","transport":"walk|drive","lengthMinutes","stops":[{"id","title","lat","lng","imageUrl","userAuthored"}]}`,
					},
					"personas": map[string]any{
						"type":        "string",
						"description": "Comma-separated personas: adult, preteen (default from tour or server)",
					},
					"script_api_key": map[string]any{
						"type":        "string",
						"description": "API key for the script provider (required if server has no default key)",
					},
					"speech_api_key": map[string]any{
						"type":        "string",
						"description": "API key for the TTS provider (required if server has no default key)",
					},
				},
				Required: []string{"tour"},
			},
		},
		{
			Name:        "get_generation_job",
			Description: "Get the status, progress and message of a narration job by ID.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"job_id": map[string]any{
						"type":        "string",
						"description": "The job ID returned from generate_tour_narration",
					},
				},
				Required: []string{"job_id"},
			},
		},
		{
			Name:        "cancel_generation_job",
			Description: "Stop a running narration job. The job is marked failed.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"job_id": map[string]any{
						"type":        "string",
						"description": "The job ID to cancel",
					},
				},
				Required: []string{"job_id"},
			},
		},
		{
			Name:        "validate_mix_selection",
			Description: "Check whether a custom mix's stop count fits its tour length and transport mode.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"length_minutes": map[string]any{
						"type":        "integer",
						"description": "Tour length: 30, 60 or 90",
						"default":     60,
					},
					"transport": map[string]any{
						"type":        "string",
						"description": "Transport mode: walk or drive",
						"default":     "walk",
					},
					"count": map[string]any{
						"type":        "integer",
						"description": "Number of selected stops",
					},
				},
				Required: []string{"count"},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	jobs  *jobs.Manager
	store store.Jobs
	cfg   Config
	log   *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(mgr *jobs.Manager, jobStore store.Jobs, cfg Config, logger *slog.Logger) *Handlers {
	return &Handlers{jobs: mgr, store: jobStore, cfg: cfg, log: logger}
}

// HandleGenerateNarration starts a narration job for a tour.
func (h *Handlers) HandleGenerateNarration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_tour_narration")
	defer span.End()

	raw := mcp.ParseString(req, "tour", "")
	if raw == "" {
		span.SetStatus(codes.Error, "missing tour")
		return mcp.NewToolResultError("tour is required"), nil
	}
	var t tour.Tour
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		span.SetStatus(codes.Error, "bad tour")
		return mcp.NewToolResultError(fmt.Sprintf("tour is not valid JSON: %v", err)), nil
	}
	if err := t.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid tour")
		return mcp.NewToolResultError(err.Error()), nil
	}

	genReq, err := t.Request(h.cfg.Personas)
	if err != nil {
		span.SetStatus(codes.Error, "bad personas")
		return mcp.NewToolResultError(err.Error()), nil
	}
	if list := mcp.ParseString(req, "personas", ""); list != "" {
		if genReq.Personas, err = persona.ParseList(list); err != nil {
			span.SetStatus(codes.Error, "bad personas")
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	genReq.ScriptAPIKey = mcp.ParseString(req, "script_api_key", h.cfg.ScriptAPIKey)
	genReq.SpeechAPIKey = mcp.ParseString(req, "speech_api_key", h.cfg.SpeechAPIKey)

	span.SetAttributes(
		attribute.String("route.id", genReq.RouteID),
		attribute.String("route.kind", string(genReq.RouteKind)),
		attribute.Int("tour.stops", len(genReq.Stops)),
	)

	id, err := h.jobs.StartJob(ctx, genReq)
	if errors.Is(err, jobs.ErrJobInFlight) {
		span.SetAttributes(attribute.String("job.id", id))
		return jsonResult(map[string]any{
			"job_id":  id,
			"status":  "in_progress",
			"message": "A narration job is already running for this tour. Poll get_generation_job with this job_id.",
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start job failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start job: %v", err)), nil
	}

	span.SetAttributes(attribute.String("job.id", id))
	h.log.InfoContext(ctx, "Narration job started", "job_id", id, "route_id", genReq.RouteID, "stops", len(genReq.Stops))

	return jsonResult(map[string]any{
		"job_id":  id,
		"status":  string(store.JobQueued),
		"message": "Narration generation started. Use get_generation_job with this job_id to check progress.",
	})
}

// HandleGetJob returns a job's polling view.
func (h *Handlers) HandleGetJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_generation_job")
	defer span.End()

	id := mcp.ParseString(req, "job_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing job_id")
		return mcp.NewToolResultError("job_id is required"), nil
	}
	span.SetAttributes(attribute.String("job.id", id))

	job, err := h.store.GetJob(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get job failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to get job: %v", err)), nil
	}
	if job == nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("job %s not found", id)), nil
	}
	return jsonResult(job.View())
}

// HandleCancelJob stops a job started by this server.
func (h *Handlers) HandleCancelJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.cancel_generation_job")
	defer span.End()

	id := mcp.ParseString(req, "job_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing job_id")
		return mcp.NewToolResultError("job_id is required"), nil
	}
	span.SetAttributes(attribute.String("job.id", id))

	if !h.jobs.CancelJob(id) {
		return mcp.NewToolResultError(fmt.Sprintf("job %s is not running on this server", id)), nil
	}
	return jsonResult(map[string]any{
		"job_id":  id,
		"message": "Cancellation requested. The job will be marked failed.",
	})
}

// HandleValidateMix reports the stop limits for a custom mix.
func (h *Handlers) HandleValidateMix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.validate_mix_selection")
	defer span.End()

	length := parseIntParam(req, "length_minutes", 60)
	transport := mcp.ParseString(req, "transport", "walk")
	count := parseIntParam(req, "count", 0)
	span.SetAttributes(
		attribute.Int("mix.length_minutes", length),
		attribute.String("mix.transport", transport),
		attribute.Int("mix.count", count),
	)

	minStops, maxStops, err := mix.Limits(length, transport)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := map[string]any{
		"valid":     true,
		"min_stops": minStops,
		"max_stops": maxStops,
	}
	if err := mix.ValidateSelection(length, transport, count); err != nil {
		result["valid"] = false
		result["error"] = err.Error()
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
