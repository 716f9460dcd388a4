package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robotweb/nsbus/internal/liveness"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and controller reachability",
	RunE:  runStatus,
}

// probe records a single liveness outcome without touching any bus.
type probe struct{ ok bool }

func (p *probe) OnLivenessSuccess() { p.ok = true }
func (p *probe) OnLivenessFailure() { p.ok = false }

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgPath := resolvedConfigPath()

	fmt.Printf("%s nsbus Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Endpoint:  %s\n", cfg.Endpoint())
	fmt.Printf("Ping:      %s\n", cfg.PingURL())
	if cfg.Liveness.Enabled {
		fmt.Printf("Liveness:  %s\n", cfg.Liveness.Schedule)
	} else {
		fmt.Println("Liveness:  disabled")
	}

	p := &probe{}
	pinger, err := liveness.NewPinger(cfg.PingURL(), cfg.Liveness.Schedule, cfg.LivenessTimeout(), p)
	if err != nil {
		fmt.Printf("  (invalid liveness schedule: %v)\n", err)
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pinger.Check(ctx)
	if p.ok {
		fmt.Println("Server:    ✓ reachable")
	} else {
		fmt.Println("Server:    ✗ unreachable")
	}
	return nil
}
