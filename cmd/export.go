package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/export"
)

var (
	exportOut    string
	exportFormat string
	exportAll    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current markers to a file",
	Long:  "Loads the board and writes the marker set as GeoJSON, XLSX, or an ESRI shapefile. --all ignores the visibility filter and exports every card with coordinates. Cards without coordinates are never exported; run 'cardmap run' first to resolve them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		env, err := initBoard(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		marks := env.Reconciler.Markers()
		if exportAll {
			marks = export.FromItems(env.Session.Items(), env.Rules)
		}

		if err := export.Write(exportOut, format, marks); err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", exportOut),
			zap.String("format", string(format)),
			zap.Int("markers", len(marks)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file path (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "geojson", "output format: geojson, xlsx, or shp")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "export every card with coordinates, ignoring visibility")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
