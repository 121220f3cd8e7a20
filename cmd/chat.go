package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marrowlab/recall/internal/config"
)

func chatCmd() *cobra.Command {
	var (
		message   string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant interactively or send a one-shot message",
		Long: `Chat with the assistant. Every completed turn is written to the
memory store and becomes retrievable in later conversations.

Examples:
  recall chat                             # interactive REPL
  recall chat -m "When is the dentist?"   # one-shot message
  recall chat -s trip-planning            # continue a named conversation`,
		Run: func(cmd *cobra.Command, args []string) {
			runChat(message, sessionID)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "one-shot message (omit for interactive mode)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "conversation id (default: auto-generated)")

	return cmd
}

func runChat(message, sessionID string) {
	rt := buildRuntime()
	defer rt.close()

	if sessionID == "" {
		sessionID = fmt.Sprintf("cli-%s", uuid.NewString()[:8])
	}

	a := rt.assistant()

	// Live settings follow edits to the config file.
	if watcher, err := config.NewWatcher(resolveConfigPath()); err == nil {
		watcher.OnChange(a.SetConfig)
		if err := watcher.Start(); err == nil {
			defer watcher.Stop()
		}
	} else {
		slog.Debug("config watcher unavailable", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if message != "" {
		reply, err := a.Send(ctx, sessionID, message)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(reply)
		return
	}

	fmt.Fprintf(os.Stderr, "\nrecall — interactive chat\n")
	fmt.Fprintf(os.Stderr, "Session: %s | Profile: %s\n", sessionID, rt.cfg.Profile)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit, \"/new\" for a fresh conversation\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return
		default:
		}

		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(os.Stderr, "Goodbye!")
			return
		}
		if input == "/new" {
			sessionID = fmt.Sprintf("cli-%s", uuid.NewString()[:8])
			fmt.Fprintf(os.Stderr, "Started session %s\n", sessionID)
			continue
		}

		reply, err := a.Send(ctx, sessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Printf("Assistant: %s\n\n", reply)
	}
}
