package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"promptkit/internal/server"
	"promptkit/internal/storage"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the render server",
		Long: `Start the HTTP render server.

Endpoints:
  GET  /v1/health         liveness and build version
  POST /v1/render         one-shot render
  GET  /v1/renders        recent journal entries
  GET  /v1/renders/{id}   one journal entry
  GET  /v1/ws             websocket render session`,
		Example: `  promptkit serve
  promptkit serve --port 9000`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return errNoContext
	}
	cfg := cliCtx.Config
	log := cliCtx.Log()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	tok, err := cliCtx.GetTokenizer()
	if err != nil {
		return err
	}

	var db *storage.DB
	if cfg.Storage.Journal {
		if db, err = cliCtx.GetStorage(); err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	}

	srv := server.New(cfg, tok, db, Version)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().Str("address", "http://"+cfg.Server.Addr()).Msg("Server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down server...")
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}
	if err := <-errCh; err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
