package main

import (
	"fmt"

	"clinic-records/client"
	"clinic-records/schema"

	"github.com/spf13/cobra"
)

func (a *app) transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"transaction", "tx"},
		Short:   "Change the treatment entries of a record",
	}
	cmd.AddCommand(a.transactionsAddCmd(), a.transactionsEditCmd(), a.transactionsDeleteCmd())
	return cmd
}

func (a *app) transactionsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <record-id>",
		Short: "Add a treatment entry to a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in schema.TransactionAdd
			if err := fieldValues(cmd.Flags(), &in, map[string]string{"recordId": args[0]}); err != nil {
				return report(cmd, client.OpAddTransaction, err)
			}
			entry, err := a.client.AddTransaction(cmd.Context(), in)
			if err != nil {
				return report(cmd, client.OpAddTransaction, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry.ID)
			return report(cmd, client.OpAddTransaction, nil)
		},
	}
	fieldFlags(cmd.Flags(), schema.TransactionAdd{}, "recordId")
	return cmd
}

func (a *app) transactionsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a treatment entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in schema.TransactionEdit
			if err := fieldValues(cmd.Flags(), &in, map[string]string{"id": args[0]}); err != nil {
				return report(cmd, client.OpEditTransaction, err)
			}
			_, err := a.client.EditTransaction(cmd.Context(), in)
			return report(cmd, client.OpEditTransaction, err)
		},
	}
	fieldFlags(cmd.Flags(), schema.TransactionEdit{}, "id")
	return cmd
}

func (a *app) transactionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a treatment entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.client.DeleteTransaction(cmd.Context(), args[0])
			return report(cmd, client.OpDeleteTransaction, err)
		},
	}
}
