package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rheath/echojam/internal/app"
	"github.com/rheath/echojam/internal/config"
	"github.com/rheath/echojam/internal/mix"
	"github.com/rheath/echojam/internal/observability"
	"github.com/rheath/echojam/internal/tts"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "echojam",
	Short:         "Generate narrated audio for walking and driving tours",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "echojam %s\n", Version)
	},
}

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices [provider]",
	Short: "List available voices for the TTS providers",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runListVoices,
}

var validateMixCmd = &cobra.Command{
	Use:   "validate-mix",
	Short: "Check a custom mix's stop count against its length and transport mode",
	RunE:  runValidateMix,
}

var (
	flagConfig    string
	flagVerbose   bool
	flagLength    int
	flagTransport string
	flagCount     int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default ./echojam.yaml or $HOME/.echojam/echojam.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log to stderr instead of drawing a progress bar")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listVoicesCmd)
	rootCmd.AddCommand(validateMixCmd)

	validateMixCmd.Flags().IntVarP(&flagLength, "length", "l", 60, "Tour length in minutes: 30, 60 or 90")
	validateMixCmd.Flags().StringVarP(&flagTransport, "transport", "t", "walk", "Transport mode: walk or drive")
	validateMixCmd.Flags().IntVarP(&flagCount, "count", "n", 0, "Number of selected stops")
	_ = validateMixCmd.MarkFlagRequired("count")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// loadApp reads configuration and wires the app. Logs are discarded below
// warn level unless --verbose is set, so the progress bar stays readable.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	level := observability.ParseLevel(cfg.Log.Level)
	if !flagVerbose && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger := observability.NewLogger(os.Stderr, level, "text")
	return app.New(ctx, cfg, logger)
}

func runListVoices(cmd *cobra.Command, args []string) error {
	providers := tts.Providers()
	if len(args) == 1 {
		providers = []string{args[0]}
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "\nAvailable voices:")
	for _, p := range providers {
		voices, err := tts.AvailableVoices(p)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n  %s\n", strings.ToUpper(p))
		fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))
		fmt.Fprintf(out, "  %-28s %-12s %-8s %s\n", "ID", "NAME", "GENDER", "DESCRIPTION")
		for _, v := range voices {
			def := ""
			if v.DefaultFor != "" {
				def = fmt.Sprintf(" (default %s)", v.DefaultFor)
			}
			fmt.Fprintf(out, "  %-28s %-12s %-8s %s%s\n", v.ID, v.Name, v.Gender, v.Description, def)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func runValidateMix(cmd *cobra.Command, args []string) error {
	minStops, maxStops, err := mix.Limits(flagLength, flagTransport)
	if err != nil {
		return err
	}
	if err := mix.ValidateSelection(flagLength, flagTransport, flagCount); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d stops fits a %d-minute %s tour (%d-%d stops)\n",
		flagCount, flagLength, flagTransport, minStops, maxStops)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
