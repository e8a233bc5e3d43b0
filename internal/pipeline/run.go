package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rheath/echojam/internal/canonical"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/progress"
	"github.com/rheath/echojam/internal/retry"
	"github.com/rheath/echojam/internal/script"
	"github.com/rheath/echojam/internal/store"
)

const (
	phaseResolve = "resolve"
	phaseScript  = "script"
	phaseAudio   = "audio"
)

// run is the mutable state of one job execution.
type run struct {
	o        *Orchestrator
	req      Request
	personas []persona.Persona
	logger   *slog.Logger
	start    time.Time

	// resolved[i] is nil when stop i could not be resolved.
	resolved []*store.CanonicalStop

	total       int
	done        int
	warnings    int
	lastWarning string
	usableAudio int
}

func (r *run) scriptPhase(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "phase.script")
	defer span.End()

	r.setStatus(ctx, store.JobGeneratingScript, progress.StageScript, "Writing narration scripts")
	for i, stop := range r.req.Stops {
		if err := ctx.Err(); err != nil {
			return r.interrupted(err)
		}
		r.resolved[i] = r.resolveStop(ctx, i, stop)
		for _, p := range r.personas {
			if canon := r.resolved[i]; canon != nil {
				r.writeScript(ctx, i, stop, canon, p)
			}
			r.advance(ctx, store.JobGeneratingScript, progress.StageScript,
				fmt.Sprintf("Writing scripts (stop %d of %d)", i+1, len(r.req.Stops)))
		}
	}
	span.SetAttributes(attribute.Int("phase.warnings", r.warnings))
	return nil
}

func (r *run) audioPhase(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "phase.audio")
	defer span.End()

	before := r.warnings
	r.setStatus(ctx, store.JobGeneratingAudio, progress.StageAudio, "Generating narration audio")
	for i, stop := range r.req.Stops {
		if err := ctx.Err(); err != nil {
			return r.interrupted(err)
		}
		for _, p := range r.personas {
			if canon := r.resolved[i]; canon != nil {
				r.writeAudio(ctx, stop, canon, p)
			}
			r.advance(ctx, store.JobGeneratingAudio, progress.StageAudio,
				fmt.Sprintf("Generating audio (stop %d of %d)", i+1, len(r.req.Stops)))
		}
	}
	span.SetAttributes(
		attribute.Int("phase.warnings", r.warnings-before),
		attribute.Int("phase.usable_audio", r.usableAudio),
	)
	return nil
}

func (r *run) interrupted(err error) error {
	return &Error{
		Stage:   "run",
		Message: fmt.Sprintf("interrupted after %d of %d units", r.done, r.total),
		Err:     err,
	}
}

// resolveStop maps the tour stop onto its canonical stop and records the
// route mapping. Failures are counted as a single warning for the stop.
func (r *run) resolveStop(ctx context.Context, index int, stop canonical.Stop) *store.CanonicalStop {
	canon, err := r.o.resolver.Resolve(ctx, r.req.City, stop)
	if err != nil {
		r.warn(ctx, phaseResolve, stop.ID, "", fmt.Sprintf("resolve stop %q: %v", stop.Title, err))
		return nil
	}
	err = r.o.store.UpsertRouteStop(ctx, store.RouteStopMapping{
		RouteKind:       r.req.RouteKind,
		RouteID:         r.req.RouteID,
		StopID:          stop.ID,
		CanonicalStopID: canon.ID,
		Position:        index,
	})
	if err != nil {
		r.warn(ctx, phaseResolve, stop.ID, "", fmt.Sprintf("map stop %q: %v", stop.Title, err))
		return nil
	}
	return canon
}

func (r *run) writeScript(ctx context.Context, index int, stop canonical.Stop, canon *store.CanonicalStop, p persona.Persona) {
	name := string(p.Name)
	existing, err := r.o.store.GetAsset(ctx, canon.ID, name)
	if err != nil {
		r.warn(ctx, phaseScript, stop.ID, name, fmt.Sprintf("load asset for %q: %v", stop.Title, err))
		return
	}
	if existing != nil && existing.Script != nil && !r.req.Switch.ForcesScript() {
		r.logger.DebugContext(ctx, "reusing script", "stop_id", stop.ID, "canonical_id", canon.ID, "persona", name)
		return
	}

	asset := baseAsset(existing, canon.ID, name)
	asset.Status = store.AssetGenerating
	asset.Error = nil
	if err := r.o.store.UpsertAsset(ctx, asset); err != nil {
		r.warn(ctx, phaseScript, stop.ID, name, fmt.Sprintf("mark %q generating: %v", stop.Title, err))
		return
	}

	in := script.Input{
		City:          r.req.City,
		TransportMode: r.req.TransportMode,
		LengthMinutes: r.req.LengthMinutes,
		Persona:       p,
		StopTitle:     stop.Title,
		StopIndex:     index,
		TotalStops:    len(r.req.Stops),
	}
	var text string
	err = r.call(ctx, func(ctx context.Context) error {
		var err error
		text, err = r.o.scripts.Generate(ctx, r.req.ScriptAPIKey, in)
		if err != nil {
			return err
		}
		if text = strings.TrimSpace(text); text == "" {
			return retry.Permanent(script.ErrEmptyScript)
		}
		return nil
	})
	r.o.metrics.ProviderCall("script", r.o.scripts.Name(), err)

	if err != nil {
		msg := fmt.Sprintf("script for %q (%s): %v", stop.Title, name, err)
		r.warn(ctx, phaseScript, stop.ID, name, msg)
		asset.Status = store.AssetFailed
		asset.Error = &msg
	} else {
		for _, issue := range script.Review(text, p) {
			r.logger.InfoContext(ctx, "script review", "stop_id", stop.ID, "persona", name,
				"category", issue.Category, "issue", issue.Message)
		}
		asset.Script = &text
		asset.Status = store.AssetReady
		asset.Error = nil
	}
	if err := r.o.store.UpsertAsset(ctx, asset); err != nil {
		r.warn(ctx, phaseScript, stop.ID, name, fmt.Sprintf("save script for %q: %v", stop.Title, err))
	}
}

func (r *run) writeAudio(ctx context.Context, stop canonical.Stop, canon *store.CanonicalStop, p persona.Persona) {
	name := string(p.Name)
	existing, err := r.o.store.GetAsset(ctx, canon.ID, name)
	if err != nil {
		r.warn(ctx, phaseAudio, stop.ID, name, fmt.Sprintf("load asset for %q: %v", stop.Title, err))
		return
	}
	asset := baseAsset(existing, canon.ID, name)
	prior := asset.AudioURL

	var (
		url     *string
		failure string
	)
	switch replay, ok := r.replayURL(stop, canon, name); {
	case ok:
		url = &replay
	case usableAudioURL(prior) && !r.req.Switch.ForcesAudio():
		r.logger.DebugContext(ctx, "reusing audio", "stop_id", stop.ID, "canonical_id", canon.ID, "persona", name)
		url = prior
	case asset.Script != nil:
		got, err := r.synthesize(ctx, stop, p, *asset.Script)
		if err == nil {
			url = &got
			break
		}
		failure = fmt.Sprintf("audio for %q (%s): %v", stop.Title, name, err)
		r.warn(ctx, phaseAudio, stop.ID, name, failure)
		if usableAudioURL(prior) {
			url = prior
		}
	default:
		failure = fmt.Sprintf("audio skipped because script missing for %q (%s)", stop.Title, name)
		r.warn(ctx, phaseAudio, stop.ID, name, failure)
	}

	asset.AudioURL = url
	if url != nil {
		r.usableAudio++
		asset.Status = store.AssetReady
		asset.Error = nil
	} else {
		asset.Status = store.AssetFailed
		asset.Error = &failure
	}
	if err := r.o.store.UpsertAsset(ctx, asset); err != nil {
		r.warn(ctx, phaseAudio, stop.ID, name, fmt.Sprintf("save audio for %q: %v", stop.Title, err))
	}
}

func (r *run) synthesize(ctx context.Context, stop canonical.Stop, p persona.Persona, text string) (string, error) {
	var audio []byte
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		audio, err = r.o.speech.Synthesize(ctx, r.req.SpeechAPIKey, p.Name, text)
		return err
	})
	r.o.metrics.ProviderCall("tts", r.o.speech.Name(), err)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}

	var url string
	err = r.call(ctx, func(ctx context.Context) error {
		var err error
		url, err = r.o.uploader.Upload(ctx, audio, r.req.RouteID, string(p.Name), stop.ID)
		return err
	})
	r.o.metrics.ProviderCall("storage", r.o.uploader.Name(), err)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return url, nil
}

// replayURL looks up a pinned URL by tour stop id, then by canonical id.
func (r *run) replayURL(stop canonical.Stop, canon *store.CanonicalStop, name string) (string, bool) {
	if u, ok := r.req.Switch.ReplayURL(stop.ID, name); ok {
		return u, true
	}
	return r.req.Switch.ReplayURL(canon.ID, name)
}

// call runs one external call with its own timeout under the retry policy.
func (r *run) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, r.o.opts.CallTimeout)
		defer cancel()
		return fn(callCtx)
	}, r.o.opts.RetryAttempts, r.o.opts.RetryBaseDelay)
}

func (r *run) warn(ctx context.Context, phase, stopID, personaName, msg string) {
	r.warnings++
	r.lastWarning = msg
	r.o.metrics.Warning(phase)
	r.logger.WarnContext(ctx, "narration warning",
		"phase", phase,
		"stop_id", stopID,
		"persona", personaName,
		"warning", msg,
	)
}

func (r *run) setStatus(ctx context.Context, status store.JobStatus, stage progress.Stage, msg string) {
	pct := progress.Percent(r.done, r.total)
	if err := r.o.store.UpdateJob(ctx, r.req.JobID, status, msg, pct); err != nil {
		r.logger.WarnContext(ctx, "update job", "status", status, "error", err)
	}
	r.emit(stage, msg, pct)
}

func (r *run) advance(ctx context.Context, status store.JobStatus, stage progress.Stage, msg string) {
	r.done++
	r.setStatus(ctx, status, stage, msg)
}

func (r *run) emit(stage progress.Stage, msg string, pct int) {
	ev := progress.NewEvent(stage, msg, pct, r.start)
	ev.JobID = r.req.JobID
	ev.Done, ev.Total = r.done, r.total
	r.o.onProgress(ev)
}

func (r *run) finalize(ctx context.Context) (*Result, error) {
	res := &Result{
		Units:       r.total,
		Warnings:    r.warnings,
		LastWarning: r.lastWarning,
		UsableAudio: r.usableAudio,
		Elapsed:     time.Since(r.start),
	}
	if r.usableAudio == 0 {
		res.Status = store.JobFailed
		msg := "no stop produced audio"
		if r.lastWarning != "" {
			msg += "; last: " + r.lastWarning
		}
		return res, &Error{Stage: "finalize", Message: msg, Err: ErrNoUsableAudio}
	}

	status, message := store.JobReady, "Narration ready"
	var errMsg *string
	if r.warnings > 0 {
		status, message = store.JobReadyWithWarnings, "Narration ready with warnings"
		summary := fmt.Sprintf("%d warning(s); last: %s", r.warnings, r.lastWarning)
		errMsg = &summary
	}
	if err := r.o.store.FinishJob(ctx, r.req.JobID, status, message, errMsg); err != nil {
		res.Status = store.JobFailed
		return res, &Error{Stage: "finalize", Message: "failed to finish job", Err: err}
	}
	res.Status = status
	r.o.metrics.JobFinished(string(status), res.Elapsed)
	r.logger.InfoContext(ctx, "narration job finished",
		"status", status,
		"warnings", r.warnings,
		"usable_audio", r.usableAudio,
		"elapsed", res.Elapsed.Round(time.Millisecond).String(),
	)

	ev := progress.NewEvent(progress.StageComplete, message, 100, r.start)
	ev.JobID = r.req.JobID
	ev.Done, ev.Total = r.done, r.total
	ev.Warnings, ev.UsableAudio = r.warnings, r.usableAudio
	r.o.onProgress(ev)
	return res, nil
}

// baseAsset copies the stored asset, or starts an empty one.
func baseAsset(existing *store.NarrationAsset, canonicalID, name string) store.NarrationAsset {
	if existing != nil {
		return *existing
	}
	return store.NarrationAsset{
		CanonicalStopID: canonicalID,
		Persona:         name,
		Status:          store.AssetPending,
	}
}

// usableAudioURL reports whether u points at real audio rather than a
// bundled placeholder path.
func usableAudioURL(u *string) bool {
	if u == nil {
		return false
	}
	s := strings.TrimSpace(*u)
	if s == "" || strings.Contains(strings.ToLower(s), "placeholder") {
		return false
	}
	return strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "data:audio/")
}
