package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sentiment-cli/internal/model"
)

var callName string

var callCmd = &cobra.Command{
	Use:   "call <phone>",
	Short: "Place an automated survey call to a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		phone := args[0]
		if model.NormalizePhone(phone) == "" {
			return eris.New("phone number is required")
		}

		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		customer, err := env.Store.GetOrCreateCustomer(ctx, callName, phone)
		if err != nil {
			return err
		}

		sid, err := env.Surveys.IssueCall(ctx, customer.ID)
		if err != nil {
			return err
		}

		zap.L().Info("survey call placed",
			zap.String("customer_id", customer.ID),
			zap.String("call_sid", sid),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "call placed: %s\n", sid)
		return nil
	},
}

func init() {
	callCmd.Flags().StringVar(&callName, "name", "there", "customer name used in the survey greeting")
	rootCmd.AddCommand(callCmd)
}
