package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var recipientsCmd = &cobra.Command{
	Use:   "recipients",
	Short: "Manage the alert distribution list",
}

var recipientsAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add an email address to the alert distribution list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(args[0])
		if email == "" || !strings.Contains(email, "@") {
			return eris.Errorf("invalid email address: %q", args[0])
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.AddRecipient(ctx, email); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", email)
		return nil
	},
}

var recipientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the alert distribution list",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		emails, err := st.ListRecipients(ctx)
		if err != nil {
			return err
		}

		if len(emails) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no recipients configured")
			return nil
		}
		for _, email := range emails {
			fmt.Fprintln(cmd.OutOrStdout(), email)
		}
		return nil
	},
}

func init() {
	recipientsCmd.AddCommand(recipientsAddCmd)
	recipientsCmd.AddCommand(recipientsListCmd)
	rootCmd.AddCommand(recipientsCmd)
}
