package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show what is stored in memory",
		Run: func(cmd *cobra.Command, args []string) {
			runStats(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runStats(jsonOutput bool) {
	rt := buildRuntime()
	defer rt.close()

	stats, err := rt.store.Statistics(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Conversations\t%d\n", stats.Conversations)
	fmt.Fprintf(w, "User turns\t%d\n", stats.UserTurns)
	fmt.Fprintf(w, "Documents\t%d\n", stats.Documents)
	fmt.Fprintf(w, "Document chunks\t%d\n", stats.DocumentChunks)
	w.Flush()
	fmt.Printf("\nDatabase: %s\n", rt.cfg.DBPath)
}
