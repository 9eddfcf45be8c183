package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cardmap/cardmap-cli/internal/model"
)

var (
	statusBoard string
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enrichment outcomes for a board",
	Long:  "Display resolution outcome counts and the most recent enrichment attempts recorded in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		boardID := statusBoard
		if boardID == "" {
			boardID = cfg.Source.Board
		}
		if boardID == "" {
			return eris.New("board is required (set source.board or --board)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		counts, err := st.ResolutionCounts(ctx, boardID)
		if err != nil {
			return eris.Wrap(err, "status: outcome counts")
		}

		recent, err := st.Resolutions(ctx, boardID, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status: recent attempts")
		}

		fmt.Println("=== Enrichment Status ===")
		fmt.Printf("Board:     %s\n", boardID)
		fmt.Printf("Resolved:  %d\n", counts[model.ResolutionResolved])
		fmt.Printf("Failed:    %d\n", counts[model.ResolutionFailed])
		fmt.Printf("Skipped:   %d\n", counts[model.ResolutionSkipped])

		if len(recent) > 0 {
			fmt.Println()
			fmt.Println("Recent attempts:")
			for _, r := range recent {
				line := fmt.Sprintf("  %-9s %-16s %s", r.Status, r.ItemID, r.Candidate)
				if r.Error != "" {
					line += " (" + r.Error + ")"
				}
				fmt.Println(line)
			}
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusBoard, "board", "", "board ID (default from config)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "how many recent attempts to show")
	rootCmd.AddCommand(statusCmd)
}
