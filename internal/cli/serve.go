package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plate-api/internal/handlers"
	"github.com/Brownie44l1/plate-api/internal/log"
	"github.com/Brownie44l1/plate-api/internal/registry"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the frame inference API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.ServerPort = servePort
		}
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "8080", "HTTP listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	// A failed load leaves the adapter failed; /health and every inference
	// call report the cause instead of the process exiting.
	if err := eng.adapter.Initialize(cfg.ModelPath); err != nil {
		log.Error("serving without a model", "err", err)
	}

	var reg registry.Backend
	store, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		cached, err := registry.NewCached(store, cfg.RegistryCacheSize)
		if err != nil {
			return err
		}
		reg = cached
		log.Info("plate registry enabled", "cache_size", cfg.RegistryCacheSize)
	}

	handler := handlers.NewHandler(eng.adapter, reg, eng.meta.ImageSize)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.Routes(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.ServerPort, "model", cfg.ModelPath,
			"state", eng.adapter.State().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
