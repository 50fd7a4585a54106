package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hibiki-voice/hibiki/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
