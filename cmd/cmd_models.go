package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hibiki-voice/hibiki/api"
	"github.com/hibiki-voice/hibiki/format"
)

// ListHandler lists the installed models.
func ListHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	refresh, _ := cmd.Flags().GetBool("refresh")

	models, err := client.List(cmd.Context(), refresh, refresh)
	if err != nil {
		return err
	}

	var data [][]string

	for _, m := range models.Models {
		if len(args) == 0 || strings.HasPrefix(strings.ToLower(m.Name), strings.ToLower(args[0])) {
			var update string
			if m.UpdateAvailable {
				update = m.LatestVersion + " available"
			}

			data = append(data, []string{m.Name, m.UUID, m.Version, format.HumanBytes(m.Size), format.HumanTime(m.ModifiedAt, "Never"), update})
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "UUID", "VERSION", "SIZE", "MODIFIED", "UPDATE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

// ShowHandler prints the details of one installed model.
func ShowHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	m, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return showModel(os.Stdout, m)
}

func showModel(w io.Writer, m *api.ModelResponse) error {
	rows := [][]string{
		{"Name", m.Name},
		{"UUID", m.UUID},
		{"Version", m.Version},
		{"Architecture", m.Architecture},
		{"Manifest", m.ManifestVersion},
		{"Format", m.Format},
		{"Size", format.HumanBytes(m.Size)},
		{"Modified", format.HumanTime(m.ModifiedAt, "Never")},
		{"Loaded", strconv.FormatBool(m.Loaded)},
	}
	if m.License != "" {
		rows = append(rows, []string{"License", m.License})
	}
	if m.UpdateAvailable {
		rows = append(rows, []string{"Update", m.LatestVersion + " available"})
	}

	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()

	if len(m.Speakers) == 0 {
		return nil
	}

	fmt.Fprintln(w)

	var styles [][]string
	for _, sp := range m.Speakers {
		for _, st := range sp.Styles {
			styles = append(styles, []string{sp.Name, st.Name, strconv.Itoa(int(st.ID))})
		}
	}

	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"SPEAKER", "STYLE", "STYLE ID"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(styles)
	table.Render()

	return nil
}

// InstallHandler installs a local package file. URLs are handed off to
// pull.
func InstallHandler(cmd *cobra.Command, args []string) error {
	if strings.HasPrefix(args[0], "http://") || strings.HasPrefix(args[0], "https://") {
		return PullHandler(cmd, args)
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := client.Install(cmd.Context(), f)
	if err != nil {
		return err
	}

	fmt.Printf("installed %s %s (%s)\n", m.Name, m.Version, m.UUID)
	return nil
}

// PullHandler downloads and installs a package from a URL or hub page.
func PullHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	fmt.Printf("pulling %s\n", args[0])
	m, err := client.Pull(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("installed %s %s (%s)\n", m.Name, m.Version, m.UUID)
	return nil
}

// UpdateHandler updates a model to the latest published version.
func UpdateHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	m, err := client.Update(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("updated %s to %s\n", m.Name, m.Version)
	return nil
}

// DeleteHandler uninstalls one or more models.
func DeleteHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	for _, arg := range args {
		if err := client.Remove(cmd.Context(), arg); err != nil {
			return err
		}
		fmt.Printf("deleted '%s'\n", arg)
	}
	return nil
}

func loadStateHandler(loaded bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}

		if err := client.SetLoadState(cmd.Context(), args[0], loaded); err != nil {
			return err
		}

		if loaded {
			fmt.Printf("marked %s loaded\n", args[0])
		} else {
			fmt.Printf("marked %s unloaded\n", args[0])
		}
		return nil
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed models",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ListHandler,
	}
	cmd.Flags().Bool("refresh", false, "Rescan the models directory and check the hub for updates")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show MODEL",
		Short:   "Show model details",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    ShowHandler,
	}
}

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "install FILE|URL",
		Short:   "Install a model package",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    InstallHandler,
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "pull URL",
		Short:   "Download and install a model from the hub",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    PullHandler,
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "update MODEL",
		Short:   "Update a model to the latest version",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    UpdateHandler,
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm MODEL [MODEL...]",
		Aliases: []string{"delete"},
		Short:   "Uninstall a model",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    DeleteHandler,
	}
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "load MODEL",
		Short:   "Mark a model as loaded in the synthesis runtime",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    loadStateHandler(true),
	}
}

func newUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "unload MODEL",
		Short:   "Mark a model as unloaded",
		Args:    cobra.ExactArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    loadStateHandler(false),
	}
}
