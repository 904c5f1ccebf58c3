// Package mapping handles the account mapping commands
package mapping

import (
	"fmt"
	"os"

	"fjacquet/recon-ledger/cmd/root"
	"fjacquet/recon-ledger/internal/models"

	"github.com/spf13/cobra"
)

var (
	account       string
	label         string
	vatDeductible bool
)

// Cmd groups the mapping commands.
var Cmd = &cobra.Command{
	Use:   "mapping",
	Short: "Manage counterparty account mappings and classify invoices",
}

var saveCmd = &cobra.Command{
	Use:   "save <counterparty>",
	Short: "Remember the expense account of a counterparty",
	Args:  cobra.ExactArgs(1),
	RunE:  saveFunc,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the chart of accounts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer()
		if err != nil {
			return err
		}
		return root.PrintJSON(cmd, c.GetClassifier().SearchMappings(args[0]))
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <invoice-file>",
	Short: "Show the account an invoice record is classified to",
	Args:  cobra.ExactArgs(1),
	RunE:  classifyFunc,
}

func init() {
	saveCmd.Flags().StringVarP(&account, "account", "a", "", "Expense account number")
	saveCmd.Flags().StringVarP(&label, "label", "l", "", "Label (default: the account name)")
	saveCmd.Flags().BoolVar(&vatDeductible, "vat-deductible", true, "Whether input VAT is deductible")
	_ = saveCmd.MarkFlagRequired("account")

	Cmd.AddCommand(saveCmd, searchCmd, classifyCmd)
}

func saveFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	mapping := models.AccountMapping{Account: account, Label: label, VATDeductible: vatDeductible}
	if err := c.GetClassifier().SaveMapping(cmd.Context(), args[0], mapping); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved mapping %s -> %s\n", args[0], account)
	return err
}

func classifyFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error reading invoice record: %w", err)
	}
	inv, err := c.GetNormalizer().NormalizeBytes(data)
	if err != nil {
		return err
	}
	cl, err := c.GetClassifier().Classify(cmd.Context(), inv)
	if err != nil {
		return err
	}
	return root.PrintJSON(cmd, map[string]any{
		"classification": cl,
		"alternatives":   c.GetClassifier().AlternativeAccounts(cl),
	})
}
