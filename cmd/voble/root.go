package main

import (
	"voble/internal/config"
	"voble/internal/logging"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voble",
		Short:         "Voble session coordinator",
		Long:          "Buys, recovers and plays the daily word puzzle for one wallet, and serves the game over HTTP, WebSocket and MCP.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			logCfg, err := config.LoadLog()
			if err != nil {
				return err
			}
			logging.Init(logCfg)
			return nil
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newPlayCommand())
	cmd.AddCommand(newRecoverCommand())
	cmd.AddCommand(newPeriodCommand())
	cmd.AddCommand(newKeysCommand())
	return cmd
}
