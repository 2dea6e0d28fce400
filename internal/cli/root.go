// Package cli implements the plate-api command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plate-api/internal/config"
	"github.com/Brownie44l1/plate-api/internal/log"
	"github.com/Brownie44l1/plate-api/internal/model"
	"github.com/Brownie44l1/plate-api/internal/registry"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfg *config.Config

	modelPath    string
	metadataPath string
	ortLibPath   string
	dbURL        string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "plate-api",
	Short:         "License plate frame inference over ONNX Runtime",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		flags := cmd.Flags()
		if flags.Changed("model") {
			cfg.ModelPath = modelPath
		}
		if flags.Changed("metadata") {
			cfg.MetadataPath = metadataPath
		}
		if flags.Changed("ort-lib") {
			cfg.ORTLibraryPath = ortLibPath
		}
		if flags.Changed("db") {
			cfg.DatabaseURL = dbURL
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		log.Init(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func Execute() {
	// Cancelled on Ctrl+C (SIGINT) or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&modelPath, "model", config.DefaultModelPath, "Path to the ONNX plate detection model")
	pf.StringVar(&metadataPath, "metadata", config.DefaultMetadataPath, "Path to the model metadata JSON (optional)")
	pf.StringVar(&ortLibPath, "ort-lib", "", "Path to the onnxruntime shared library")
	pf.StringVar(&dbURL, "db", "", "PostgreSQL connection string for the plate registry")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// engine bundles what the inference commands share.
type engine struct {
	meta    model.Metadata
	loader  *model.ORTLoader
	adapter *model.Adapter
}

// newEngine builds the adapter from config but does not initialize it.
func newEngine() (*engine, error) {
	meta, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	loader := &model.ORTLoader{
		LibraryPath:    cfg.ORTLibraryPath,
		IntraOpThreads: cfg.IntraOpThreads,
		InputName:      meta.InputName,
		OutputName:     meta.OutputName,
	}
	adapter := model.NewAdapter(loader, model.Options{Channels: meta.Channels})
	return &engine{meta: meta, loader: loader, adapter: adapter}, nil
}

func (e *engine) Close() {
	if err := e.adapter.Release(); err != nil {
		log.Warn("release failed", "err", err)
	}
	if err := e.loader.Close(); err != nil {
		log.Warn("onnx environment teardown failed", "err", err)
	}
}

// openRegistry connects to the plate registry when a database URL is set.
// It returns nil, nil when the registry is disabled.
func openRegistry(ctx context.Context) (*registry.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	store, err := registry.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to plate registry: %w", err)
	}
	return store, nil
}
