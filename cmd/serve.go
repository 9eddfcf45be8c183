package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardmap/cardmap-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board as map markers over HTTP",
	Long:  "Loads the board, starts enrichment for cards without coordinates in the background, and serves markers, visibility toggles, and queue status over a JSON API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initBoard(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		ctrl := server.New(ctx, server.Deps{
			Session:        env.Session,
			Queue:          env.Queue,
			Reconciler:     env.Reconciler,
			Store:          env.Store,
			APIKey:         cfg.Server.APIKey,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		// Resolve missing coordinates in the background while serving.
		if queued := env.Queue.EnqueueAll(env.Session.Items()); queued > 0 {
			zap.L().Info("enrichment queued", zap.Int("entries", queued))
			go func() {
				if err := env.Queue.Run(ctx); err != nil {
					zap.L().Warn("enrichment run stopped", zap.Error(err))
				}
			}()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           ctrl.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
