package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/store"
)

var jobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show the status of a narration job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

var flagJobStops bool

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.Flags().BoolVarP(&flagJobStops, "stops", "s", false, "Also list the route's stops and their narration assets")
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.Store.GetJob(ctx, args[0])
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", args[0])
	}
	if err := printJSON(cmd, job.View()); err != nil {
		return err
	}
	if !flagJobStops {
		return nil
	}

	mappings, err := a.Store.ListRouteStops(ctx, job.RouteKind, job.RouteID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nPOS\tSTOP\tCANONICAL\tPERSONA\tSTATUS\tAUDIO")
	for _, m := range mappings {
		for _, p := range persona.All() {
			asset, err := a.Store.GetAsset(ctx, m.CanonicalStopID, string(p.Name))
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", m.Position+1, m.StopID, m.CanonicalStopID, p.Name, assetStatus(asset), audioSummary(asset))
		}
	}
	return w.Flush()
}

func assetStatus(a *store.NarrationAsset) string {
	if a == nil {
		return "-"
	}
	return string(a.Status)
}

func audioSummary(a *store.NarrationAsset) string {
	if a == nil || a.AudioURL == nil {
		return "-"
	}
	u := *a.AudioURL
	if len(u) > 60 {
		return u[:57] + "..."
	}
	return u
}
