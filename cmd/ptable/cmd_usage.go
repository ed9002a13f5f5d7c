package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"prompttable/internal/usage"

	"github.com/spf13/cobra"
)

var usageSessions bool

// usageCmd reports recorded token usage
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage recorded in this workspace",
	Long: `Prints the token counts reported by Gemini for this workspace, broken down
by model and operation. Simulated replies consume no tokens and are not recorded.`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().BoolVar(&usageSessions, "sessions", false, "Also break usage down by conversation")
}

func runUsage(cmd *cobra.Command, args []string) error {
	tracker, err := usage.NewTracker(resolveWorkspace())
	if err != nil {
		return err
	}
	defer closeUsage(tracker)

	stats := tracker.Stats()
	out := cmd.OutOrStdout()
	if stats.Requests == 0 {
		fmt.Fprintln(out, "No usage recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Requests: %d\n", stats.Requests)
	fmt.Fprintf(out, "Tokens:   %d (input %d, output %d)\n\n", stats.Total.Total, stats.Total.Input, stats.Total.Output)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "BREAKDOWN\tKEY\tINPUT\tOUTPUT\tTOTAL")
	writeBreakdown(w, "model", stats.ByModel)
	writeBreakdown(w, "operation", stats.ByOperation)
	if usageSessions {
		writeBreakdown(w, "session", stats.BySession)
	}
	return w.Flush()
}

func writeBreakdown(w io.Writer, label string, m map[string]usage.TokenCounts) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c := m[k]
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", label, k, c.Input, c.Output, c.Total)
	}
}
