// Package container wires core nsbus services using go.uber.org/dig.
package container

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/robotweb/nsbus/internal/bus"
	"github.com/robotweb/nsbus/internal/config"
	"github.com/robotweb/nsbus/internal/hub"
	"github.com/robotweb/nsbus/internal/liveness"
	"github.com/robotweb/nsbus/internal/transport"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg     *config.Config
	broker  *bus.Broker
	hub     *hub.Hub
	metrics *hub.Metrics
	pinger  *liveness.Pinger
}

func (c *Container) Config() *config.Config   { return c.cfg }
func (c *Container) Broker() *bus.Broker      { return c.broker }
func (c *Container) Hub() *hub.Hub            { return c.hub }
func (c *Container) Metrics() *hub.Metrics    { return c.metrics }
func (c *Container) Pinger() *liveness.Pinger { return c.pinger }
func (c *Container) LivenessEnabled() bool    { return c.cfg.Liveness.Enabled }

// New builds and wires all core services from cfg. Construction is cheap:
// nothing dials or listens until the caller opens the broker or serves the hub.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		newDialer,
		newUpgrader,
		newBroker,
		hub.NewMetrics,
		newHub,
		newPinger,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		broker *bus.Broker,
		h *hub.Hub,
		metrics *hub.Metrics,
		pinger *liveness.Pinger,
	) {
		result = &Container{
			cfg:     cfg,
			broker:  broker,
			hub:     h,
			metrics: metrics,
			pinger:  pinger,
		}
	})
	return result, err
}

func newDialer(cfg *config.Config) transport.Dialer {
	return transport.NewWebSocketDialer(cfg.HandshakeTimeout(), cfg.WriteTimeout())
}

func newUpgrader(cfg *config.Config) *transport.Upgrader {
	return transport.NewUpgrader(cfg.WriteTimeout())
}

func newBroker(cfg *config.Config, dialer transport.Dialer) *bus.Broker {
	b := bus.NewBroker(cfg.Endpoint(), dialer)
	b.SetLogMessages(cfg.Bus.LogMessages)
	b.SetLogDebug(cfg.Bus.LogDebug)
	return b
}

func newHub(cfg *config.Config, upgrader *transport.Upgrader, metrics *hub.Metrics) (*hub.Hub, error) {
	h := hub.New(upgrader, metrics)
	for _, ns := range cfg.Hub.BroadcastOnly {
		if err := h.RegisterBroadcastOnly(ns); err != nil {
			return nil, fmt.Errorf("hub broadcast-only namespace %q: %w", ns, err)
		}
	}
	for _, ns := range cfg.Hub.RelayNamespaces {
		if err := h.RegisterNamespaceHandler(hub.NewRelayHandler(h, ns)); err != nil {
			return nil, fmt.Errorf("hub relay namespace %q: %w", ns, err)
		}
	}
	return h, nil
}

func newPinger(cfg *config.Config, b *bus.Broker) (*liveness.Pinger, error) {
	return liveness.NewPinger(cfg.PingURL(), cfg.Liveness.Schedule, cfg.LivenessTimeout(), b)
}
