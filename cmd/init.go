package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robotweb/nsbus/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runInit,
}

func runInit(_ *cobra.Command, _ []string) error {
	cfgPath := resolvedConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		// Refresh in place: keeps existing values and fills in new defaults.
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	fmt.Printf("\n%s nsbus is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Set server.host and server.port in %s\n", cfgPath)
	fmt.Println("  2. Listen:  nsbus listen telemetry")
	fmt.Println("  3. Or serve the other end locally: nsbus serve")
	return nil
}
