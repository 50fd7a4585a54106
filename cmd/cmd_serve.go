package cmd

import (
	"errors"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/hibiki-voice/hibiki/envconfig"
	"github.com/hibiki-voice/hibiki/server"
)

// RunServer starts the hibiki server on the configured address.
func RunServer(_ *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start hibiki",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
}
