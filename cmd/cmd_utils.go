package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hibiki-voice/hibiki/api"
)

// checkServerHeartbeat makes sure a hibiki server is reachable before a
// command talks to it, turning connection errors into a usable hint.
func checkServerHeartbeat(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	if err := client.Heartbeat(cmd.Context()); err != nil {
		if strings.Contains(err.Error(), " refused") || strings.Contains(err.Error(), "could not connect") {
			return errors.New("could not connect to a running hibiki server, start one with 'hibiki serve'")
		}
		return err
	}

	return nil
}
