package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/topicbook/internal/queue/streams"
	"github.com/mohammad-safakhou/topicbook/internal/task/redisbus"
	"github.com/spf13/cobra"
)

func eventsCMD(cfgPath *string) *cobra.Command {
	var group, consumerName, start string
	events := &cobra.Command{
		Use:   "events",
		Short: "Tail task status events from the redis stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			rc := a.cfg.Storage.Redis
			if !rc.Enabled {
				return errors.New("storage.redis.enabled is false; there is no event stream to follow")
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rdb, err := a.redis(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			schemas, err := schemaRegistry()
			if err != nil {
				return err
			}
			if err := streams.EnsureGroup(ctx, rdb, rc.Stream, group, start); err != nil {
				return fmt.Errorf("ensure group: %w", err)
			}
			if consumerName == "" {
				consumerName = fmt.Sprintf("events-%s", uuid.NewString()[:8])
			}
			consumer := streams.NewConsumer(rdb, schemas, group, consumerName)

			out := cmd.OutOrStdout()
			err = redisbus.Follow(ctx, consumer, rc.Stream, 5*time.Second, func(_ string, p streams.TaskStatusV1) error {
				msg := p.Message
				switch {
				case p.Error != "":
					msg = fmt.Sprintf("%s (%s)", p.Error, p.Kind)
				case p.Path != "" && msg == "":
					msg = p.Path
				}
				fmt.Fprintf(out, "%s %s %s\n", p.TaskID, p.State, msg)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	events.Flags().StringVar(&group, "group", "topicbook-events", "consumer group name")
	events.Flags().StringVar(&consumerName, "consumer", "", "consumer name (default random)")
	events.Flags().StringVar(&start, "start", "$", "group start id when the group is created ($ for new events, 0 for history)")
	return events
}
