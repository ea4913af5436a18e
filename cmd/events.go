/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ridehub/apiserver/internal/mq"
	"github.com/ridehub/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect photo events published by the server",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the photo events channel and log each event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() {
			_ = log.Sync()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		if broker == nil {
			return errors.New("no mq backend configured (set MQ_BACKEND or --mq)")
		}
		defer func() {
			_ = broker.Close()
		}()

		log.Info("tailing photo events", zap.String("channel", cfg.MQ.Channel))
		err = broker.Subscribe(ctx, cfg.MQ.Channel, logPhotoEvent(log))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

func logPhotoEvent(log *zap.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		var event types.PhotoEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Warn("undecodable event", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		log.Info("photo event",
			zap.String("message_id", msg.ID),
			zap.String("type", string(event.Type)),
			zap.String("photo_id", event.PhotoID),
			zap.String("user_id", event.UserID),
			zap.String("filename", event.Filename),
			zap.Time("occurred_at", event.OccurredAt),
		)
		return nil
	}
}
