package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all stored memory",
		Long: `Delete the memory database and start over. Every conversation turn
and ingested document is removed. This cannot be undone.`,
		Run: func(cmd *cobra.Command, args []string) {
			runReset(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}

func runReset(force bool) {
	rt := buildRuntime()
	defer rt.close()

	if !force {
		confirmed := false
		c := huh.NewConfirm().
			Title(fmt.Sprintf("Delete all memory at %s?", rt.cfg.DBPath)).
			Affirmative("Delete").
			Negative("Cancel").
			Value(&confirmed)
		if err := c.Run(); err != nil || !confirmed {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			return
		}
	}

	if err := rt.store.Reset(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Memory cleared.")
}
