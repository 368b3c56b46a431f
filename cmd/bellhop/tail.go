package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bellhop-dev/bellhop/internal/client/rest"
	"github.com/bellhop-dev/bellhop/internal/client/session"
	"github.com/bellhop-dev/bellhop/internal/wire"
	"github.com/bellhop-dev/bellhop/internal/xslog"
)

func tailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Stream notification events live",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, token, err := connFlags(cmd)
			if err != nil {
				return err
			}

			logger := xslog.NewLoggerFromEnv(os.Stderr)
			fetcher := rest.NewClient(server, token)

			sess := session.New(
				session.WSDialer{URL: wsURL(server)},
				fetcher,
				logger,
				session.Config{
					Token:   token,
					OnEvent: printEvent,
					OnStateChange: func(st session.ConnState) {
						fmt.Fprintf(os.Stderr, "-- %s\n", st)
					},
				},
			)

			return sess.Run(cmd.Context())
		},
	}
}

func printEvent(e session.Event) {
	switch e.Kind {
	case wire.TypeNewNotification:
		fmt.Printf("NEW    %s  %s: %s\n", e.ID, e.Notification.Title, e.Notification.Message)
	case wire.TypeNotificationRead:
		fmt.Printf("READ   %s\n", e.ID)
	case wire.TypeAllNotificationsRead:
		fmt.Println("READ   all")
	case wire.TypeNotificationDeleted:
		fmt.Printf("DELETE %s\n", e.ID)
	}
}
