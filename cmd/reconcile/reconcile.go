// Package reconcile handles the bank reconciliation commands
package reconcile

import (
	"fmt"
	"time"

	"fjacquet/recon-ledger/cmd/root"
	"fjacquet/recon-ledger/internal/common"
	"fjacquet/recon-ledger/internal/dateutils"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconciliation"
	"fjacquet/recon-ledger/internal/report"

	"github.com/spf13/cobra"
)

var (
	company     string
	dryRun      bool
	invoiceID   string
	invoiceKind string
	reason      string
	fromDate    string
	toDate      string
	asOf        string
)

// Cmd runs a reconciliation batch and groups the lifecycle commands.
var Cmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match unreconciled bank transactions against open invoices",
	Long: `Score every unreconciled transaction of a company against its open invoices.
Scores at or above the auto threshold are confirmed, scores at or above the
suggest threshold are stored as suggestions for review.`,
	RunE: batchFunc,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <transaction-id>",
	Short: "Manually confirm a transaction against an invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  confirmFunc,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <transaction-id>",
	Short: "Reject the suggestion of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  rejectFunc,
}

var undoCmd = &cobra.Command{
	Use:   "undo <transaction-id>",
	Short: "Reverse a confirmed reconciliation",
	Args:  cobra.ExactArgs(1),
	RunE:  undoFunc,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List the suggestions waiting for review",
	RunE:  pendingFunc,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize reconciliation over a period",
	RunE:  reportFunc,
}

var agingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Bucket open invoices by days past due",
	RunE:  agingFunc,
}

func init() {
	Cmd.PersistentFlags().StringVarP(&company, "company", "c", "", "Company identifier")
	Cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Score without writing anything")

	confirmCmd.Flags().StringVar(&invoiceID, "invoice", "", "Invoice identifier")
	confirmCmd.Flags().StringVar(&invoiceKind, "kind", "", "Invoice kind (receivable, payable)")
	_ = confirmCmd.MarkFlagRequired("invoice")
	_ = confirmCmd.MarkFlagRequired("kind")

	rejectCmd.Flags().StringVar(&reason, "reason", "", "Reason for the rejection")
	undoCmd.Flags().StringVar(&reason, "reason", "", "Reason for the reversal")

	reportCmd.Flags().StringVar(&fromDate, "from", "", "Start of the period (inclusive)")
	reportCmd.Flags().StringVar(&toDate, "to", "", "End of the period (inclusive)")

	agingCmd.Flags().StringVar(&invoiceKind, "kind", string(models.KindReceivable), "Invoice kind (receivable, payable)")
	agingCmd.Flags().StringVar(&asOf, "as-of", "", "Reference date (default today)")

	Cmd.AddCommand(confirmCmd, rejectCmd, undoCmd, pendingCmd, reportCmd, agingCmd)
}

func batchFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	summary, err := c.GetOrchestrator().ReconcileBatch(cmd.Context(), company, reconciliation.BatchOptions{DryRun: dryRun})
	if err != nil {
		return err
	}
	root.Log.Info("Reconciliation finished",
		logging.F(logging.FieldCompany, company),
		logging.F("processed", summary.Processed),
		logging.F("auto_matched", summary.AutoMatched),
		logging.F("suggested", summary.Suggested),
		logging.F("dry_run", summary.DryRun))

	if root.SharedFlags.Format == string(report.FormatCSV) {
		w, closeFn, err := root.OpenOutput(cmd)
		if err != nil {
			return err
		}
		defer closeFn()
		return common.WriteRows(c.GetCSVCodec(), w, summary.Details)
	}
	return root.PrintJSON(cmd, summary)
}

func confirmFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	res, err := c.GetOrchestrator().Confirm(cmd.Context(), args[0], models.InvoiceRef{
		ID:   invoiceID,
		Kind: models.InvoiceKind(invoiceKind),
	})
	if err != nil {
		return err
	}
	return root.PrintJSON(cmd, res)
}

func rejectFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	res, err := c.GetOrchestrator().Reject(cmd.Context(), args[0], reason)
	if err != nil {
		return err
	}
	return root.PrintJSON(cmd, res)
}

func undoFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	res, err := c.GetOrchestrator().Undo(cmd.Context(), args[0], reason)
	if err != nil {
		return err
	}
	return root.PrintJSON(cmd, res)
}

func pendingFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	suggestions, err := c.GetOrchestrator().PendingSuggestions(cmd.Context(), company)
	if err != nil {
		return err
	}
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	return root.PrintJSON(cmd, suggestions)
}

func reportFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	from, err := parseDate("from", fromDate)
	if err != nil {
		return err
	}
	to, err := parseDate("to", toDate)
	if err != nil {
		return err
	}
	if !to.IsZero() {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	r, err := c.GetOrchestrator().ReconciliationReport(cmd.Context(), company, from, to)
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
	return c.GetReportGenerator().Reconciliation(w, r, format)
}

func agingFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	ref, err := parseDate("as-of", asOf)
	if err != nil {
		return err
	}
	a, err := c.GetOrchestrator().Aging(cmd.Context(), company, models.InvoiceKind(invoiceKind), ref)
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
	return c.GetReportGenerator().Aging(w, a, format)
}

func parseDate(flag, v string) (time.Time, error) {
	t, err := dateutils.ParseDate(v)
	if err != nil {
		return t, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return t, nil
}
