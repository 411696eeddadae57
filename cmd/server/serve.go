// Package main is the entry point for the analysis-concepts metadata
// server: it serves the concept catalog and executes derivations and
// analyses against the attached study data.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/cdisc-org/analysis-concepts-sub000/api"
	"github.com/cdisc-org/analysis-concepts-sub000/catalog"
	"github.com/cdisc-org/analysis-concepts-sub000/config"
	"github.com/cdisc-org/analysis-concepts-sub000/dataset"
	"github.com/cdisc-org/analysis-concepts-sub000/engine"
	"github.com/cdisc-org/analysis-concepts-sub000/fitter"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "acs-server",
		Short:         "Analysis-concepts metadata and execution server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	rootCmd.AddCommand(newLoadCmd())
	return rootCmd
}

// newLoadCmd ingests a study metadata YAML directory into the catalog.
func newLoadCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a study metadata directory into the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			store, closeDB, err := openStore(cfg.MetaDBPath)
			if err != nil {
				return err
			}
			defer closeDB()

			meta, err := catalog.LoadDirectory(dir)
			if err != nil {
				return err
			}
			return meta.Ingest(cmd.Context(), store)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "metadata", "study metadata YAML directory")
	return cmd
}

func openStore(path string) (*catalog.Store, func(), error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open metadata store: %w", err)
	}
	if err := catalog.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return catalog.NewStore(db), func() { db.Close() }, nil
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, warn := range cfg.Warnings {
		logger.Warn("config", "message", warn)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, closeDB, err := openStore(cfg.MetaDBPath)
	if err != nil {
		return err
	}
	defer closeDB()

	if cfg.MetadataDir != "" {
		meta, err := catalog.LoadDirectory(cfg.MetadataDir)
		if err != nil {
			return fmt.Errorf("load metadata: %w", err)
		}
		if err := meta.Ingest(ctx, store); err != nil {
			return fmt.Errorf("ingest metadata: %w", err)
		}
		logger.Info("study metadata loaded", "dir", cfg.MetadataDir,
			"concepts", len(meta.Concepts), "class_bindings", len(meta.Classes),
			"derivations", len(meta.Derivations), "analyses", len(meta.Analyses))
	}

	lakeDB, err := sql.Open("duckdb", cfg.LakePath)
	if err != nil {
		return fmt.Errorf("open study data: %w", err)
	}
	defer lakeDB.Close()

	eng := engine.New(fitter.Means{}, logger)
	handler := api.NewHandler(store, dataset.NewLakeReader(lakeDB), eng, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
