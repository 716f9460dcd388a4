package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robotweb/nsbus/internal/bus"
	"github.com/robotweb/nsbus/internal/container"
)

var listenTypes []string

var listenCmd = &cobra.Command{
	Use:   "listen <namespace>...",
	Short: "Subscribe to namespaces and print every message received",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runListen,
}

func init() {
	listenCmd.Flags().StringSliceVarP(&listenTypes, "type", "t", nil, "Only print messages of these types")
}

func runListen(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	broker := c.Broker()
	defer broker.Close()

	consumer := broker.NewConsumer()
	defer consumer.Finish()

	printer := bus.NewHandler(func(m bus.Message) {
		fmt.Printf("[%s] %s: %s\n", m.Namespace(), m.Type(), m.Payload())
	})
	for _, ns := range args {
		if err := consumer.SubscribeToNamespace(ns); err != nil {
			return fmt.Errorf("subscribe %q: %w", ns, err)
		}
		if len(listenTypes) == 0 {
			if err := consumer.RegisterNamespaceHandler(ns, printer); err != nil {
				return err
			}
			continue
		}
		for _, t := range listenTypes {
			if err := consumer.RegisterTypeHandler(ns, t, printer); err != nil {
				return err
			}
		}
	}

	err = consumer.RegisterConnectionStateListeners(
		bus.NewListener(func() { fmt.Printf("✓ Connected to %s\n", broker.Endpoint()) }),
		bus.NewListener(func() { fmt.Println("✗ Disconnected") }),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if c.LivenessEnabled() {
		g.Go(func() error { return c.Pinger().Start(gctx) })
	} else {
		broker.Open()
		g.Go(func() error {
			<-gctx.Done()
			return gctx.Err()
		})
	}

	fmt.Printf("%s Listening on %v. Press Ctrl+C to stop.\n", logo, args)

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
