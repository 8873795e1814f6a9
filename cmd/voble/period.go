package main

import (
	"time"

	"voble/internal/period"

	"github.com/spf13/cobra"
)

func newPeriodCommand() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Print the daily, weekly and monthly period ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return err
				}
				now = t
			}
			return printJSON(cmd.OutOrStdout(), period.At(now))
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 instant to resolve instead of now")
	return cmd
}
