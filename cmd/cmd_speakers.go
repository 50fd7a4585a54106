package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hibiki-voice/hibiki/api"
)

// SpeakersHandler lists every speaker and style across installed models.
func SpeakersHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	speakers, err := client.Speakers(cmd.Context())
	if err != nil {
		return err
	}

	var data [][]string

	for _, sp := range speakers {
		if len(args) > 0 && !strings.HasPrefix(strings.ToLower(sp.Name), strings.ToLower(args[0])) {
			continue
		}

		for _, st := range sp.Styles {
			data = append(data, []string{sp.Name, sp.UUID, st.Name, strconv.Itoa(int(st.ID))})
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"SPEAKER", "UUID", "STYLE", "STYLE ID"})
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

func newSpeakersCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "speakers",
		Short:   "List speakers and their style IDs",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    SpeakersHandler,
	}
}
