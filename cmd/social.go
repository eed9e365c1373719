package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var socialCmd = &cobra.Command{
	Use:   "social",
	Short: "Run one social scrape and classification pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.SocialRun.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"fetched %d posts, %d candidates, %d inserted, %d already seen, %d skipped\n",
			stats.Fetched, stats.Candidates, stats.Inserted, stats.Duplicates, stats.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(socialCmd)
}
