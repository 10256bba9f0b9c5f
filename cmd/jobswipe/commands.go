package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oggyb/jobswipe/internal/api"
	"github.com/oggyb/jobswipe/internal/config"
	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/models"
	"github.com/oggyb/jobswipe/internal/server"
	"github.com/oggyb/jobswipe/internal/service/chat"
	"github.com/oggyb/jobswipe/internal/service/notifications"
	"github.com/oggyb/jobswipe/internal/service/outbox"
	"github.com/oggyb/jobswipe/internal/service/status"
)

func buildWatchCmd() *cobra.Command {
	var room int64
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow notifications and optionally one chat room",
		Long: `Open the notification channel of the signed-in user and, with --room,
the chat room of that match. Pushes and messages are logged. The gRPC status
service and the /metrics endpoint are served until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), room)
		},
	}
	cmd.Flags().Int64Var(&room, "room", 0, "Match id of a chat room to open")
	return cmd
}

func runWatch(parent context.Context, room int64) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx, reg, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer appCtx.Close()
	log := logger.Subsystem("watch")

	notif, err := notifications.Start(ctx, appCtx,
		notifications.WithToast(func(text string) { log.Info("notification", "text", text) }),
		notifications.WithPushHook(func(n models.Notification) {
			log.Debug("push", "type", n.Type, "id", n.ID, "related", n.RelatedID)
		}),
	)
	if err != nil {
		return fmt.Errorf("start notifications: %w", err)
	}
	defer notif.Close()

	if room > 0 {
		session, err := chat.Open(ctx, appCtx, room, notif.UserID(),
			chat.WithMessageHook(func(m models.Message) {
				log.Info("message", "room", room, "from", m.SenderID, "content", m.Content)
			}),
		)
		if err != nil {
			return fmt.Errorf("open chat room %d: %w", room, err)
		}
		defer session.Close()
		log.Info("chat room open", "room", room, "with", session.Room().OtherUserName, "history", len(session.Timeline().Messages))
	} else {
		logRooms(ctx, appCtx.API, log)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.StartGRPCServer(gctx, appCtx.Config, status.NewRegistrar(appCtx, notif))
	})
	g.Go(func() error {
		return server.StartHTTPServer(gctx, appCtx.Config.Metrics.Addr,
			server.NewHTTPHandler(reg, appCtx.Realtime.Snapshots))
	})
	g.Go(func() error {
		h := notif.Handle()
		select {
		case <-gctx.Done():
			return nil
		case <-h.Done():
			return h.Err()
		}
	})

	log.Info("watching",
		"user", notif.UserID(),
		"unread", notif.UnreadCount(),
		"grpc", net.JoinHostPort(appCtx.Config.GRPC.Host, appCtx.Config.GRPC.Port),
		"metrics", appCtx.Config.Metrics.Addr,
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}

// logRooms lists the chat rooms that --room can open.
func logRooms(ctx context.Context, client *api.Client, log *slog.Logger) {
	rooms, err := client.ChatRooms(ctx)
	if err != nil {
		log.Warn("chat rooms unavailable", "err", err)
		return
	}
	for _, r := range rooms {
		log.Info("chat room", "room", r.MatchID, "with", r.OtherUserName, "job", r.JobTitle, "unread", r.UnreadCount)
	}
}

func buildReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Re-send every unconfirmed action once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCtx, _, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer appCtx.Close()

			sum, err := outbox.Replay(cmd.Context(), appCtx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func buildStatusCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the connections of a running watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conn, err := grpc.NewClient(net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port),
				grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()
			client := status.NewClient(conn)

			list, err := client.ListConnections(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range list.GetFields()["connections"].GetListValue().GetValues() {
				f := v.GetStructValue().GetFields()
				fmt.Fprintf(out, "%-14s %-6s %s\n",
					f["owner"].GetStringValue(), f["scope"].GetStringValue(), f["state"].GetStringValue())
			}
			if n, err := client.GetUnreadCount(ctx); err == nil {
				fmt.Fprintf(out, "unread: %d\n", n)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}
