package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/enrich"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the board and resolve missing coordinates",
	Long:  "Fetches the configured board, queues every card that still lacks coordinates, drains the enrichment queue, and prints a summary. Resolved coordinates are written back to the board unless enrich.persist is off.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initBoard(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		queued := env.Queue.EnqueueAll(env.Session.Items())
		zap.L().Info("enrichment queued", zap.Int("entries", queued))

		if err := env.Queue.Run(ctx); err != nil {
			return err
		}

		stats := env.Queue.Stats()
		zap.L().Info("enrichment complete",
			zap.Int("resolved", stats.Resolved),
			zap.Int("failed", stats.Failed),
			zap.Int("skipped", stats.Skipped),
		)

		result := struct {
			BoardID string       `json:"board_id"`
			Items   int          `json:"items"`
			Queued  int          `json:"queued"`
			Markers int          `json:"markers"`
			Stats   enrich.Stats `json:"stats"`
		}{
			BoardID: env.Session.BoardID(),
			Items:   len(env.Session.Items()),
			Queued:  queued,
			Markers: len(env.Reconciler.Markers()),
			Stats:   stats,
		}

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
