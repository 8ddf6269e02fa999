package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"FormationsCache/internal/app"
	"FormationsCache/internal/config"
	"FormationsCache/internal/domain"
	"FormationsCache/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "formations",
		Short:         "Serve sanitised Swiss Snowsports formations from a scraped cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML config (defaults to $FORMATIONS_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newScrapeCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (config.Config, *slog.Logger) {
	cfg := config.Load()
	if o.configPath != "" {
		cfg = config.LoadFile(o.configPath)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, logging.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

func (o *rootOptions) application(cmd *cobra.Command) (*app.Application, *slog.Logger, error) {
	cfg, logger := o.load()
	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scrape scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Serve(cmd.Context()); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var filters domain.Filters

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the sanitised listing as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			resp := application.List(cmd.Context(), filters)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("encode listing: %w", err)
			}
			if !resp.Success {
				return fmt.Errorf("listing failed: %s", resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filters.Region, "region", "", "substring filter on the course location")
	cmd.Flags().StringVar(&filters.Type, "type", "", "substring filter on the course title")
	return cmd
}

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run one ingestion pass against the configured sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := opts.application(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Scrape(cmd.Context())
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scraped=%d upserted=%d deactivated=%d invalid_urls=%d\n",
				report.Scraped, report.Upserted, report.Deactivated, report.InvalidURLs)
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the formations cache schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := opts.load()
			cfg.Database.AutoMigrate = false

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema ready", "driver", cfg.Database.Driver)
			return nil
		},
	}
}
