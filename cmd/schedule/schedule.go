// Package schedule runs reconciliation on a cron schedule
package schedule

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/recon-ledger/cmd/root"
	"fjacquet/recon-ledger/internal/container"
	"fjacquet/recon-ledger/internal/scheduler"

	"github.com/spf13/cobra"
)

var (
	companies []string
	cronSpec  string
	once      bool
)

// Cmd runs the scheduler until interrupted.
var Cmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run reconciliation batches on a cron schedule",
	Long: `Run ReconcileBatch for every configured company on reconciliation.schedule
in reconciliation.timezone until interrupted. --once runs a single pass.`,
	RunE: scheduleFunc,
}

func init() {
	Cmd.Flags().StringSliceVar(&companies, "company", nil, "Companies to reconcile (default: reconciliation.companies)")
	Cmd.Flags().StringVar(&cronSpec, "cron", "", "Cron expression (default: reconciliation.schedule)")
	Cmd.Flags().BoolVar(&once, "once", false, "Run one pass and exit")
}

// New builds the scheduler from the container configuration. Non-empty
// arguments override the configured companies and expression.
func New(c *container.Container, companies []string, spec string) (*scheduler.Scheduler, error) {
	cfg := c.GetConfig()
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if len(companies) == 0 {
		companies = cfg.Reconciliation.Companies
	}
	if spec == "" {
		spec = cfg.Reconciliation.Schedule
	}
	return scheduler.New(c.GetOrchestrator(), scheduler.Config{
		Schedule:  spec,
		Location:  loc,
		Companies: companies,
	}, scheduler.WithMetrics(c.GetMetrics()), scheduler.WithLogger(c.GetLogger()))
}

func scheduleFunc(cmd *cobra.Command, args []string) error {
	c, err := root.GetContainer()
	if err != nil {
		return err
	}
	s, err := New(c, companies, cronSpec)
	if err != nil {
		return err
	}
	if once {
		return s.RunOnce(cmd.Context())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.Start()
	fmt.Fprintf(cmd.OutOrStdout(), "Scheduler running, next run at %s\n", s.Next().Format("2006-01-02 15:04:05 MST"))
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}
