package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/handchord/internal/sink"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List MIDI outputs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		defer sink.CloseDriver()

		ports := sink.ListOutPorts()
		if len(ports) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no MIDI outputs; play opens a virtual port named %q\n", sink.VirtualPortName)
			return
		}
		for i, name := range ports {
			fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", i, name)
		}
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
