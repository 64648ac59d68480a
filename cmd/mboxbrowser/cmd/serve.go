package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/mboxbrowser/internal/api"
	"github.com/wesm/mboxbrowser/internal/session"
)

var (
	servePort int
	serveBind string
)

var serveCmd = &cobra.Command{
	Use:   "serve [mbox-file]",
	Short: "Serve the HTTP API",
	Long: `Run the HTTP API server in the foreground.

If an MBOX file is given it is opened before the server starts; otherwise
clients open one with POST /api/v1/open.

Configure the server in config.toml:
  [server]
  api_port = 8080
  bind_addr = "127.0.0.1"
  api_key = "secret"          # required when binding beyond loopback

Use Ctrl+C to stop the server gracefully.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Server.APIPort = servePort
	}
	if cmd.Flags().Changed("bind") {
		cfg.Server.BindAddr = serveBind
	}

	// Validate security posture before doing any work
	if err := cfg.Server.ValidateSecure(); err != nil {
		return err
	}

	ctx := cmd.Context()
	var sess *session.Session
	if len(args) == 1 {
		var err error
		sess, _, err = openMailbox(ctx, args[0])
		if err != nil {
			return err
		}
	} else {
		sess = newSession(nil)
	}
	defer sess.Close()

	apiServer := api.NewServer(cfg, sess, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mboxbrowser API server started\n")
	fmt.Fprintf(out, "  API server: http://%s\n", net.JoinHostPort(cfg.Server.BindAddr, strconv.Itoa(cfg.Server.APIPort)))
	if sess.IsOpen() {
		fmt.Fprintf(out, "  Open file:  %s (%d messages)\n", args[0], sess.GetEmailCount())
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		logger.Error("API server error", "error", err)
		runErr = fmt.Errorf("api server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}
	return runErr
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides [server] api_port)")
	serveCmd.Flags().StringVar(&serveBind, "bind", "127.0.0.1", "Address to bind (overrides [server] bind_addr)")
}
