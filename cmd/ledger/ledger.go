// Package ledger handles the ledger posting commands
package ledger

import (
	"fmt"
	"os"

	"fjacquet/recon-ledger/cmd/root"
	"fjacquet/recon-ledger/internal/container"
	"fjacquet/recon-ledger/internal/fileutils"
	"fjacquet/recon-ledger/internal/ledger"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/report"

	"github.com/spf13/cobra"
)

var (
	debitAccount  string
	creditAccount string
	label         string
	vatDeductible bool
	autoPost      bool
	minConfidence float64
	company       string
)

// Cmd groups the ledger commands.
var Cmd = &cobra.Command{
	Use:   "ledger",
	Short: "Build and post ledger entries from supplier invoices",
}

var previewCmd = &cobra.Command{
	Use:   "preview <invoice-file>",
	Short: "Show the entry an invoice record would produce",
	Long: `Normalize a supplier invoice record (YAML or JSON), classify it, split the
VAT and print the balanced entry without storing it.`,
	Args: cobra.ExactArgs(1),
	RunE: previewFunc,
}

var postCmd = &cobra.Command{
	Use:   "post <invoice-file>",
	Short: "Create the ledger entry of an invoice record",
	Args:  cobra.ExactArgs(1),
	RunE:  postFunc,
}

var batchCmd = &cobra.Command{
	Use:   "batch <file-or-directory>...",
	Short: "Post several invoice records",
	Long: `Post every invoice record given on the command line. Directories are
expanded to their .yaml, .yml and .json files. Records below --min-confidence
are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: batchFunc,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger entries of a company",
	RunE:  exportFunc,
}

func init() {
	for _, c := range []*cobra.Command{previewCmd, postCmd} {
		c.Flags().StringVar(&debitAccount, "debit-account", "", "Override the expense account")
		c.Flags().StringVar(&creditAccount, "credit-account", "", "Override the payables account")
		c.Flags().StringVar(&label, "label", "", "Override the expense label")
		c.Flags().BoolVar(&vatDeductible, "vat-deductible", true, "Override whether input VAT is deductible")
	}
	postCmd.Flags().BoolVar(&autoPost, "auto-post", false, "Create the entry as posted instead of draft")
	batchCmd.Flags().BoolVar(&autoPost, "auto-post", false, "Create the entries as posted instead of draft")
	batchCmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Skip records whose OCR confidence is lower")
	exportCmd.Flags().StringVarP(&company, "company", "c", "", "Company identifier")

	Cmd.AddCommand(previewCmd, postCmd, batchCmd, exportCmd)
}

// override collects the override flags set on cmd, nil when none is.
func override(cmd *cobra.Command) *ledger.Override {
	o := &ledger.Override{
		DebitAccount:  debitAccount,
		CreditAccount: creditAccount,
		Label:         label,
	}
	if cmd.Flags().Changed("vat-deductible") {
		v := vatDeductible
		o.VATDeductible = &v
	}
	if o.IsZero() {
		return nil
	}
	return o
}

func readInvoice(c *container.Container, path string) (models.NormalizedInvoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.NormalizedInvoice{}, fmt.Errorf("error reading invoice record: %w", err)
	}
	inv, err := c.GetNormalizer().NormalizeBytes(data)
	if err != nil {
		return inv, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}

func previewFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	inv, err := readInvoice(c, args[0])
	if err != nil {
		return err
	}
	preview, err := c.GetLedger().PreviewEntry(cmd.Context(), inv, override(cmd))
	if err != nil {
		return err
	}
	return root.PrintJSON(cmd, preview)
}

func postFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	inv, err := readInvoice(c, args[0])
	if err != nil {
		return err
	}
	entry, err := c.GetLedger().PostEntry(cmd.Context(), inv, ledger.PostOptions{
		Override: override(cmd),
		AutoPost: autoPost || c.GetConfig().Ledger.AutoPost,
	})
	if err != nil {
		return err
	}
	return root.PrintJSON(cmd, entry)
}

func batchFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	files, err := fileutils.ExpandPaths(args, ".yaml", ".yml", ".json")
	if err != nil {
		return err
	}
	docs := make([]models.NormalizedInvoice, 0, len(files))
	for _, f := range files {
		inv, err := readInvoice(c, f)
		if err != nil {
			return err
		}
		docs = append(docs, inv)
	}

	threshold := minConfidence
	if !cmd.Flags().Changed("min-confidence") {
		threshold = c.GetConfig().Ledger.MinConfidence
	}
	result, err := c.GetLedger().PostBatch(cmd.Context(), docs, ledger.BatchOptions{
		AutoPost:      autoPost || c.GetConfig().Ledger.AutoPost,
		MinConfidence: threshold,
	})
	if err != nil {
		return err
	}
	root.Log.Info("Ledger batch finished",
		logging.F("processed", result.Processed),
		logging.F("success", result.Success),
		logging.F("errors", result.Errors),
		logging.F("skipped", result.Skipped))
	return root.PrintJSON(cmd, result)
}

func exportFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	entries, err := c.GetLedger().List(cmd.Context(), company)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(root.SharedFlags.Format)
	if err != nil {
		return err
	}
	w, closeFn, err := root.OpenOutput(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	return c.GetReportGenerator().Ledger(w, entries, format)
}
