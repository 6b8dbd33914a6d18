package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammad-safakhou/topicbook/internal/task"
	"github.com/spf13/cobra"
)

func generateCMD(cfgPath *string) *cobra.Command {
	var description string
	generate := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate one TopicBook in-process and print its progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			reg, sink, cleanup, err := a.registry(ctx, engine)
			if err != nil {
				return err
			}
			defer cleanup()
			if sink != nil {
				go sink.Run(context.WithoutCancel(ctx))
				defer sink.Close()
			}
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer scancel()
				_ = reg.Shutdown(sctx)
			}()

			id, err := reg.Submit(task.Request{Topic: strings.Join(args, " "), Description: description})
			if err != nil {
				return err
			}
			events, err := reg.Observe(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for ev := range events {
				fmt.Fprintln(out, ev.Message)
				if ev.Type != task.EventTerminal {
					continue
				}
				if ev.Snapshot.State == task.StateFailure {
					return errors.New("generation failed")
				}
				return nil
			}
			return fmt.Errorf("task %s: %w", id, ctx.Err())
		},
	}
	generate.Flags().StringVarP(&description, "description", "d", "", "who the book is for, to personalize it")
	return generate
}
