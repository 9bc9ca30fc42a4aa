/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/booklend/apiserver/config"
	"github.com/booklend/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// notifyCmd represents the notify command.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume loan events and log them",
	Long: `Subscribes to the configured loan event channel and logs every
approve, deny, and return decision. Requires MQ_BACKEND to be set to
rabbitmq or pubsub.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		bus, err := mq.NewEventBusFromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer bus.Close()

		slog.Info("listening for loan events", slog.String("channel", cfg.MQ.Channel))
		err = bus.SubscribeLoanEvents(cmd.Context(), func(ctx context.Context, event mq.LoanEvent) error {
			slog.Info("loan event",
				slog.String("type", string(event.Type)),
				slog.Int("request_id", event.RequestID),
				slog.Int("history_id", event.HistoryID),
				slog.Int("user_id", event.UserID),
				slog.Int("book_id", event.BookID),
				slog.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
