package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/robotweb/nsbus/internal/bus"
	"github.com/robotweb/nsbus/internal/container"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <namespace> <type> [payload]",
	Short: "Send a single message and exit",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "How long to wait for the connection")
}

var errConnectTimeout = errors.New("timed out waiting for connection")

func runSend(_ *cobra.Command, args []string) error {
	payload := ""
	if len(args) == 3 {
		payload = args[2]
	}
	msg, err := bus.NewMessage(args[0], args[1], payload)
	if err != nil {
		return err
	}

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

	connected := make(chan struct{}, 1)
	if err := consumer.SubscribeToNamespace(msg.Namespace()); err != nil {
		return err
	}
	err = consumer.RegisterConnectionStateListeners(bus.NewListener(func() {
		select {
		case connected <- struct{}{}:
		default:
		}
	}), nil)
	if err != nil {
		return err
	}

	broker.Open()
	select {
	case <-connected:
	case <-time.After(sendTimeout):
		return fmt.Errorf("%s: %w", broker.Endpoint(), errConnectTimeout)
	}

	if err := consumer.SendMessage(msg); err != nil {
		return err
	}
	fmt.Printf("✓ Sent %s\n", msg)
	return nil
}
