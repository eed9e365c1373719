package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Fetch search-trend interest for the tracked keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		points, err := env.TrendsRun.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "upserted %d trend points\n", points)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trendsCmd)
}
