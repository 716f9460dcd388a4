package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robotweb/nsbus/internal/config"
	"github.com/robotweb/nsbus/internal/container"
)

var serveBind string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the controller side: ping and metrics on port, bus hub on port+1",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveBind, "bind", "b", "0.0.0.0", "Address to listen on")
}

func newHTTPMux(cfg *config.Config, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	pingPath := cfg.Server.PingPath
	if pingPath == "" {
		pingPath = "/ping"
	}
	mux.HandleFunc(pingPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong\n"))
	})
	if cfg.Hub.MetricsPath != "" {
		mux.Handle(cfg.Hub.MetricsPath, metrics)
	}
	return mux
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(serveBind, strconv.Itoa(cfg.Server.Port)),
		Handler:           newHTTPMux(cfg, c.Metrics().Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	busSrv := &http.Server{
		Addr:              net.JoinHostPort(serveBind, strconv.Itoa(cfg.Server.Port+1)),
		Handler:           c.Hub(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{httpSrv, busSrv} {
		g.Go(func() error {
			slog.Info("serve: listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(httpSrv.Shutdown(shutdownCtx), busSrv.Shutdown(shutdownCtx))
	})

	fmt.Printf("%s Serving namespaces [%s] on %s. Press Ctrl+C to stop.\n",
		logo, strings.Join(c.Hub().Namespaces(), ", "), busSrv.Addr)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
