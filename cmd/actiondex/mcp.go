package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jkaninda/actiondex/internal/catalog"
	"github.com/jkaninda/actiondex/internal/config"
	"github.com/jkaninda/actiondex/internal/discovery"
	"github.com/jkaninda/actiondex/internal/gateway/mcpsrv"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve discovery tools over MCP stdio",
	Long: `MCP exposes action discovery as Model Context Protocol tools over stdio,
backed by the advertisements persisted in storage. Point an MCP client at
this command to give it discover_actions and list_actions tools.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
}

// runMCP serves the discovery tools over stdio. The catalog is loaded once
// from storage at startup; stdout carries the MCP transport so logs go to
// stderr only.
func runMCP(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cat := catalog.New(logger)
	svc := discovery.New(cat, store, nil, discovery.Params{
		MinScore:   cfg.Ranking.EffectiveMinScore(),
		MaxResults: cfg.Ranking.EffectiveMaxResults(),
	}, logger)

	if _, err := svc.Rehydrate(context.Background()); err != nil {
		return fmt.Errorf("rehydrating catalog: %w", err)
	}

	return mcpsrv.New(svc, version, logger).ServeStdio()
}
