package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one sentiment threshold check",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ratio, err := env.Monitor.Check(ctx)
		if err != nil {
			return err
		}

		state := "ok"
		if env.Monitor.Alerting() {
			state = "alerting"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "good ratio %.2f (threshold %.2f): %s\n",
			ratio, cfg.Monitor.Threshold, state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
