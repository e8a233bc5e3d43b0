package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rheath/echojam/internal/genmode"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/progress"
	"github.com/rheath/echojam/internal/store"
	"github.com/rheath/echojam/internal/tour"
)

var generateCmd = &cobra.Command{
	Use:   "generate <tour.yaml>",
	Short: "Generate narration for a tour in the foreground",
	Long: "Resolve the tour's stops to canonical stops, write scripts for every persona, " +
		"then synthesize and upload audio. Existing scripts and audio are reused unless the " +
		"generation mode forces regeneration.",
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	flagPersonas     string
	flagMode         string
	flagScriptAPIKey string
	flagSpeechAPIKey string
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&flagPersonas, "personas", "p", "", "Comma-separated personas: adult, preteen (default from tour or config)")
	generateCmd.Flags().StringVarP(&flagMode, "mode", "m", "", "Generation mode, overriding the mode file: reuse_existing, force_regenerate_all, force_regenerate_script, force_regenerate_audio")
	generateCmd.Flags().StringVar(&flagScriptAPIKey, "script-api-key", "", "API key for the script provider (overrides config)")
	generateCmd.Flags().StringVar(&flagSpeechAPIKey, "speech-api-key", "", "API key for the TTS provider (overrides config)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t, err := tour.Load(args[0])
	if err != nil {
		return err
	}

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	defaults, err := a.Personas()
	if err != nil {
		return err
	}
	req, err := t.Request(defaults)
	if err != nil {
		return err
	}
	if flagPersonas != "" {
		if req.Personas, err = persona.ParseList(flagPersonas); err != nil {
			return err
		}
	}

	req.Switch = genmode.Load(a.Config.Generation.ModeFile, a.Logger)
	if flagMode != "" {
		req.Switch = genmode.New(genmode.ParseMode(flagMode), nil)
	}
	req.ScriptAPIKey = firstNonEmpty(flagScriptAPIKey, a.Config.ScriptAPIKey())
	req.SpeechAPIKey = firstNonEmpty(flagSpeechAPIKey, a.Config.SpeechAPIKey())

	active, err := a.Store.FindActiveJob(ctx, req.RouteID)
	if err != nil {
		return err
	}
	if active != nil {
		return fmt.Errorf("route %s already has job %s in %s; poll it with: echojam job %s", req.RouteID, active.ID, active.Status, active.ID)
	}

	req.JobID, err = store.NewJobID()
	if err != nil {
		return err
	}
	err = a.Store.CreateJob(ctx, store.GenerationJob{
		ID:        req.JobID,
		RouteKind: req.RouteKind,
		RouteID:   req.RouteID,
		Status:    store.JobQueued,
		Message:   "Queued",
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	var onProgress progress.Callback
	if !flagVerbose {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		onProgress = r.Handle
	}

	_, err = a.Orchestrator(onProgress).Execute(ctx, req)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
