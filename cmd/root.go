// Package cmd defines the staffcrawler command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/api"
	"github.com/JakeFAU/district-staff-crawler/internal/app"
	"github.com/JakeFAU/district-staff-crawler/internal/config"
	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/logging"
	"github.com/JakeFAU/district-staff-crawler/internal/pipeline"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the surface commands use. Tests inject a fake through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Start(ctx context.Context) (pipeline.Summary, error)
	SetSave(save bool)
	SetConcurrent(on bool)
	Mode() (save, concurrent bool)
	ResetPosition() error
	ResetErrors() error
	ResetData(ctx context.Context) error
	NextPosition() (int, error)
	Errors() ([]crawler.ErrorRecord, error)
	StatusServer() *api.Server
	StatusAddr() string
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "staffcrawler",
		Short: "Crawls school-district websites for staff directories.",
		Long: `staffcrawler reads district homepages from a reference dataset, finds
school sub-sites and their staff directory pages, and extracts personnel
tables into normalized records. Progress is checkpointed so an interrupted
run resumes where it stopped.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConsoleCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
