package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/widgetsync/internal/layout"
	"github.com/conneroisu/widgetsync/internal/metrics"
	"github.com/conneroisu/widgetsync/internal/server"
	"github.com/conneroisu/widgetsync/internal/store"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Host the widgets of a layout",
	Long: `Host the widgets declared in the layout file and serve them as a
dashboard, a JSON API and a websocket sync channel.

Examples:
  widgetsync serve                          # Serve layout.yml on localhost:8050
  widgetsync serve --layout ops.yml -p 9000 # Serve another layout
  widgetsync serve --store file --store-path cache.json`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, serverBindings)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lay := &layout.Layout{}
	if _, statErr := os.Stat(cfg.Layout.Path); statErr == nil {
		lay, err = layout.Load(cfg.Layout.Path)
		if err != nil {
			return err
		}
	} else {
		logger.Warn(ctx, statErr, "No layout file, serving an empty page", "path", cfg.Layout.Path)
	}

	st, err := store.Open(ctx, store.Config{Driver: cfg.Store.Driver, Path: cfg.Store.Path})
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, server.Options{
		Config:  cfg,
		Store:   st,
		Layout:  lay,
		Logger:  logger,
		Metrics: metrics.New(),
	})
	if err != nil {
		_ = st.Close()
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d widgets on http://%s\n", len(srv.Page().Widgets()), cfg.Server.Addr())
	return srv.Run(ctx, cfg.Layout.Path)
}
