// Package root contains the root command for the application
package root

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"fjacquet/recon-ledger/internal/config"
	"fjacquet/recon-ledger/internal/container"
	"fjacquet/recon-ledger/internal/fileutils"
	"fjacquet/recon-ledger/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	Driver     string
	DSN        string
	Output     string
	Format     string
}

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// AppContainer holds the dependencies of the running command.
	AppContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "recon-ledger",
		Short: "Reconcile bank transactions with invoices and post supplier invoices to the ledger.",
		Long: `recon-ledger matches bank transactions against open invoices using a
weighted score, handles the confirm/reject/undo lifecycle, and turns supplier
invoices into balanced double-entry ledger postings with Swiss VAT.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return Teardown()
		},
	}

	// SharedFlags are the persistent flags of every command.
	SharedFlags = CommonFlags{}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVar(&SharedFlags.ConfigFile, "config", "", "Config file (default: config.yaml in $HOME/.recon-ledger, .recon-ledger or .)")
	Cmd.PersistentFlags().StringVar(&SharedFlags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	Cmd.PersistentFlags().StringVar(&SharedFlags.LogFormat, "log-format", "", "Log format (text, json)")
	Cmd.PersistentFlags().StringVar(&SharedFlags.Driver, "storage-driver", "", "Storage driver (memory, sqlite, pgx)")
	Cmd.PersistentFlags().StringVar(&SharedFlags.DSN, "dsn", "", "Storage data source name")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "-", "Output file, - for stdout")
	Cmd.PersistentFlags().StringVar(&SharedFlags.Format, "format", "json", "Output format (json, csv, xlsx)")
}

func setup(cmd *cobra.Command, args []string) error {
	if _, err := config.LoadEnv(); err != nil {
		Log.WithError(err).Warn("Failed to load .env file")
	}
	cfg, err := config.Load(SharedFlags.ConfigFile)
	if err != nil {
		return err
	}
	applyFlags(cfg)

	Log = config.NewLogger(cfg)
	AppContainer, err = container.NewContainer(cfg, container.WithLogger(Log))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	return nil
}

func applyFlags(cfg *config.Config) {
	if SharedFlags.LogLevel != "" {
		cfg.Log.Level = SharedFlags.LogLevel
	}
	if SharedFlags.LogFormat != "" {
		cfg.Log.Format = SharedFlags.LogFormat
	}
	if SharedFlags.Driver != "" {
		cfg.Storage.Driver = SharedFlags.Driver
	}
	if SharedFlags.DSN != "" {
		cfg.Storage.DSN = SharedFlags.DSN
	}
}

// Teardown closes the container of the last command.
func Teardown() error {
	if AppContainer == nil {
		return nil
	}
	err := AppContainer.Close()
	AppContainer = nil
	return err
}

// GetContainer returns the container or an error when setup did not run.
func GetContainer() (*container.Container, error) {
	if AppContainer == nil {
		return nil, errors.New("application container is not initialized")
	}
	return AppContainer, nil
}

// PrintJSON writes v as indented JSON to the command output.
func PrintJSON(cmd *cobra.Command, v any) error {
	return WriteJSON(cmd.OutOrStdout(), v)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// OpenOutput returns the writer selected by --output and a function that
// closes it.
func OpenOutput(cmd *cobra.Command) (io.Writer, func() error, error) {
	if SharedFlags.Output == "" || SharedFlags.Output == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := fileutils.CreateFile(SharedFlags.Output)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
