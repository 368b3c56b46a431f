package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bellhop-dev/bellhop/internal/client/rest"
)

func restClient(cmd *cobra.Command) (*rest.Client, error) {
	server, token, err := connFlags(cmd)
	if err != nil {
		return nil, err
	}
	return rest.NewClient(server, token), nil
}

func connFlags(cmd *cobra.Command) (server, token string, err error) {
	server, err = cmd.Flags().GetString("server")
	if err != nil {
		return "", "", err
	}
	token, err = cmd.Flags().GetString("token")
	if err != nil {
		return "", "", err
	}
	if token == "" {
		return "", "", errors.New("no token: set --token or BELLHOP_TOKEN")
	}
	return strings.TrimRight(server, "/"), token, nil
}

// wsURL rewrites the REST base URL into the websocket endpoint.
func wsURL(server string) string {
	switch {
	case strings.HasPrefix(server, "https://"):
		return "wss://" + strings.TrimPrefix(server, "https://") + "/ws"
	case strings.HasPrefix(server, "http://"):
		return "ws://" + strings.TrimPrefix(server, "http://") + "/ws"
	default:
		return "ws://" + server + "/ws"
	}
}
