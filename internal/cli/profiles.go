package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/shortload/internal/performance/executor"
	"github.com/wesleyorama2/shortload/internal/shortener"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the simulated user profiles and executors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printProfiles(cmd.OutOrStdout())
	},
}

func printProfiles(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "PROFILE\tWAIT\tDESCRIPTION")
	for _, p := range shortener.Profiles() {
		fmt.Fprintf(tw, "%s\t%s-%s\t%s\n", p.Name, p.Wait.Min, p.Wait.Max, p.Description)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "EXECUTOR\tNAME\tDESCRIPTION")
	for _, t := range executor.GetSupportedExecutors() {
		d := executor.GetExecutorDescription(t)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Type, d.Name, d.Description)
	}
	return tw.Flush()
}
