package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marrowlab/recall/internal/search"
)

func searchCmd() *cobra.Command {
	var (
		maxResults int
		threshold  float64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query memory directly",
		Long: `Run a hybrid semantic and keyword search over everything stored,
without starting a chat. Useful for checking what the assistant would
retrieve for a given question.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runSearch(strings.Join(args, " "), maxResults, threshold, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max", "n", 5, "maximum results")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", -1, "relevance threshold override (default: config value)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

type searchResultEntry struct {
	Content     string  `json:"content"`
	Relevance   float64 `json:"relevance"`
	Source      string  `json:"source"`
	EntityMatch bool    `json:"entityMatch"`
	FilePath    string  `json:"filePath,omitempty"`
}

func runSearch(query string, maxResults int, threshold float64, jsonOutput bool) {
	rt := buildRuntime()
	defer rt.close()

	if threshold < 0 {
		threshold = rt.cfg.Memory.RelevanceThreshold
	}

	rs, err := rt.engine.Search(context.Background(), query, search.Options{
		MaxResults:         maxResults,
		RelevanceThreshold: threshold,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	results := rs.Ranked()

	if jsonOutput {
		entries := make([]searchResultEntry, len(results))
		for i, r := range results {
			entries[i] = searchResultEntry{
				Content:     r.Content,
				Relevance:   r.Relevance,
				Source:      r.Source,
				EntityMatch: r.IsEntityMatch,
				FilePath:    r.FilePath,
			}
		}
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}

	for i, r := range results {
		marker := ""
		if r.IsEntityMatch {
			marker = " [entity]"
		}
		fmt.Printf("%d. (%.2f)%s %s\n", i+1, r.Relevance, marker, firstLine(r.Content))
		if r.FilePath != "" {
			fmt.Printf("   from %s\n", r.FilePath)
		}
	}
	fmt.Printf("\n%d results, ~%d tokens\n", len(results), rs.TokenEstimate)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
