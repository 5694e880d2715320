package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leMaik/chunky-pr-as-update-site/src/broker"
	"github.com/leMaik/chunky-pr-as-update-site/src/contracts"
	"github.com/leMaik/chunky-pr-as-update-site/src/logger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow archive downloads reported by running servers",
	Long: `Subscribe to the archive event topic and print every archive a server
downloads from GitHub. Requires REDPANDA_BROKERS (or broker.brokers).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(appConfig.Broker.Brokers) == 0 {
			return errors.New("no brokers configured; set REDPANDA_BROKERS")
		}
		group, _ := cmd.Flags().GetString("group")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logger.NewConsoleLoggerWithLevel(logLevel)
		b, err := broker.Open(appConfig.Broker.Brokers, log)
		if err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
		defer b.Close()

		msgs, err := b.Subscribe(ctx, appConfig.Broker.Topic, group)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", appConfig.Broker.Topic, err)
		}
		return printEvents(ctx, msgs, cmd.OutOrStdout(), log)
	},
}

func init() {
	eventsCmd.Flags().String("group", "chunky-pr-events", "consumer group id")
}

// printEvents renders messages until the channel closes or ctx is done.
// Messages that are not fetch events are logged and skipped.
func printEvents(ctx context.Context, msgs <-chan broker.Message, w io.Writer, log logger.Logger) error {
	styles := defaultStyles()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var event contracts.ArchiveFetched
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Error("[Events] Skipping malformed message at offset %d: %v", msg.Offset, err)
				continue
			}
			fmt.Fprintln(w, renderEvent(event, styles))
		}
	}
}
