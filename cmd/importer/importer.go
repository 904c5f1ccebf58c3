// Package importer handles loading transactions and invoices from CSV
package importer

import (
	"context"
	"fmt"

	"fjacquet/recon-ledger/cmd/root"
	"fjacquet/recon-ledger/internal/common"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/retry"

	"github.com/spf13/cobra"
)

var company string

// Cmd groups the import commands.
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Import bank transactions or invoices from CSV",
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions <csv-file>",
	Short: "Import bank transactions",
	Long: `Import bank transactions from a CSV file with the columns
id, company_id, date, amount, currency, description, reference, counterparty.
Positive amounts are incoming, negative amounts outgoing.`,
	Args: cobra.ExactArgs(1),
	RunE: transactionsFunc,
}

var invoicesCmd = &cobra.Command{
	Use:   "invoices <csv-file>",
	Short: "Import receivable and payable invoices",
	Long: `Import invoices from a CSV file with the columns id, company_id, number,
kind, counterparty_id, counterparty_name, amount, paid_amount, currency,
issue_date, due_date, status, payment_reference.`,
	Args: cobra.ExactArgs(1),
	RunE: invoicesFunc,
}

func init() {
	Cmd.PersistentFlags().StringVarP(&company, "company", "c", "", "Company for rows without company_id")
	Cmd.AddCommand(transactionsCmd, invoicesCmd)
}

func transactionsFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	rows, err := common.ReadCSVFile[common.TransactionRow](c.GetCSVCodec(), args[0])
	if err != nil {
		return err
	}
	txs, err := c.GetCSVCodec().Transactions(rows, company)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	policy := c.GetConfig().RetryPolicy()
	for _, tx := range txs {
		err := retry.Do(cmd.Context(), policy, root.Log, "transactions.insert", func(ctx context.Context) error {
			return c.GetStore().Transactions().Insert(ctx, tx)
		})
		if err != nil {
			return fmt.Errorf("import transaction %s: %w", tx.ID, err)
		}
	}
	root.Log.Info("Imported transactions",
		logging.F(logging.FieldInputFile, args[0]),
		logging.F(logging.FieldCount, len(txs)))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions\n", len(txs))
	return err
}

func invoicesFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	rows, err := common.ReadCSVFile[common.InvoiceRow](c.GetCSVCodec(), args[0])
	if err != nil {
		return err
	}
	invs, err := c.GetCSVCodec().Invoices(rows, company)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	policy := c.GetConfig().RetryPolicy()
	for _, inv := range invs {
		err := retry.Do(cmd.Context(), policy, root.Log, "invoices.insert", func(ctx context.Context) error {
			return c.GetStore().Invoices().Insert(ctx, inv)
		})
		if err != nil {
			return fmt.Errorf("import invoice %s: %w", inv.ID, err)
		}
	}
	root.Log.Info("Imported invoices",
		logging.F(logging.FieldInputFile, args[0]),
		logging.F(logging.FieldCount, len(invs)))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d invoices\n", len(invs))
	return err
}
