package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/events"
	"github.com/alfredjeanlab/tendergraph/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream project events from NATS",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		all, _ := cmd.Flags().GetBool("all")
		if cfg.NATSURL == "" {
			return fmt.Errorf("TG_NATS_URL is not set")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return err
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				var head struct {
					Project string `json:"project"`
				}
				if err := msg.Decode(&head); err != nil {
					logger.Warn("undecodable event", "topic", msg.Topic, "err", err)
					continue
				}
				if !all && head.Project != projectID {
					continue
				}
				if outputFormat != formatTable {
					fmt.Println(string(msg.Data))
					continue
				}
				fmt.Printf("%s %s %s\n",
					ui.RenderMuted(time.Now().Format(time.TimeOnly)),
					ui.RenderAccent(msg.Topic),
					string(msg.Data))
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("topic", events.TopicAll, "NATS subject to subscribe to")
	watchCmd.Flags().Bool("all", false, "show events of every project")
}
