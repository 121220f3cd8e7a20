package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marrowlab/recall/internal/ingest"
)

func ingestCmd() *cobra.Command {
	var chunkLen int

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Add documents to memory",
		Long: `Split each file into paragraph-aligned chunks, embed them, and store
them as searchable document memory.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runIngest(args, chunkLen)
		},
	}

	cmd.Flags().IntVar(&chunkLen, "chunk-len", 0, "max chunk length in characters (0 = default)")

	return cmd
}

func runIngest(paths []string, chunkLen int) {
	rt := buildRuntime()
	defer rt.close()

	in := ingest.New(rt.store, rt.embedder, rt.extractor)
	in.MaxChunkLen = chunkLen

	ctx := context.Background()
	failed := false
	for _, path := range paths {
		n, err := in.IngestFile(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error ingesting %s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d chunks stored\n", path, n)
	}
	if failed {
		os.Exit(1)
	}
}
