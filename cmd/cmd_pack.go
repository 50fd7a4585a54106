package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hibiki-voice/hibiki/format"
	"github.com/hibiki-voice/hibiki/hvm"
)

// PackHandler builds a distributable package from a manifest JSON file and
// a model payload.
func PackHandler(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var manifest hvm.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("could not parse manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return err
	}

	payload, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	legacy, _ := cmd.Flags().GetBool("legacy")

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		if legacy {
			out = manifest.UUID + "." + hvm.FormatLegacy.Ext()
		} else {
			out = manifest.UUID + "." + hvm.FormatPacked.Ext()
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if legacy {
		err = hvm.WriteLegacy(f, &manifest, payload)
	} else {
		err = hvm.WritePacked(f, &manifest, payload)
	}
	if err != nil {
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fi, err := os.Stat(out)
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s (%s)\n", out, format.HumanBytes(fi.Size()))
	return nil
}

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack MANIFEST PAYLOAD",
		Short: "Build a model package from a manifest and a model payload",
		Args:  cobra.ExactArgs(2),
		RunE:  PackHandler,
	}
	cmd.Flags().StringP("output", "o", "", "Output file name (default <uuid>.hvmx)")
	cmd.Flags().Bool("legacy", false, "Write the legacy layout instead of the packed container")
	return cmd
}
