// Package cmd implements the hibiki command line interface.
package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hibiki-voice/hibiki/api"
	"github.com/hibiki-voice/hibiki/envconfig"
	"github.com/hibiki-voice/hibiki/version"
)

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Println("Warning: could not connect to a running Hibiki instance")
	}

	if serverVersion != "" {
		fmt.Printf("hibiki version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		fmt.Printf("Warning: client version is %s\n", version.Version)
	}
}

// NewCLI builds the root command with every subcommand attached.
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "hibiki",
		Short:         "Speech synthesis model manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	serveCmd := newServeCmd()
	listCmd := newListCmd()
	showCmd := newShowCmd()
	installCmd := newInstallCmd()
	pullCmd := newPullCmd()
	updateCmd := newUpdateCmd()
	deleteCmd := newDeleteCmd()
	loadCmd := newLoadCmd()
	unloadCmd := newUnloadCmd()
	speakersCmd := newSpeakersCmd()
	packCmd := newPackCmd()

	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["HIBIKI_HOST"]}

	for _, cmd := range []*cobra.Command{
		listCmd,
		showCmd,
		installCmd,
		pullCmd,
		updateCmd,
		deleteCmd,
		loadCmd,
		unloadCmd,
		speakersCmd,
		serveCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["HIBIKI_DEBUG"],
				envVars["HIBIKI_HOST"],
				envVars["HIBIKI_HUB"],
				envVars["HIBIKI_MAX_CHECKS"],
				envVars["HIBIKI_MODELS"],
				envVars["HIBIKI_NOBOOTSTRAP"],
				envVars["HIBIKI_ORIGINS"],
			})
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		listCmd,
		showCmd,
		installCmd,
		pullCmd,
		updateCmd,
		deleteCmd,
		loadCmd,
		unloadCmd,
		speakersCmd,
		packCmd,
	)

	return rootCmd
}
