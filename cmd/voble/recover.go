package main

import (
	"errors"

	"voble/internal/config"
	"voble/internal/period"

	"github.com/spf13/cobra"
)

func newRecoverCommand() *cobra.Command {
	var periodID string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Re-apply the TEE reset for a ticket that was paid but never applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadApp()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			if periodID == "" {
				periodID = period.ClockProvider{}.Current().Daily
			}
			res := rt.agent.RecoverTicket(cmd.Context(), periodID)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "daily period id (defaults to today, UTC+8)")
	return cmd
}
