package main

import (
	"fmt"
	"os"

	"fjacquet/recon-ledger/cmd/importer"
	"fjacquet/recon-ledger/cmd/ledger"
	"fjacquet/recon-ledger/cmd/mapping"
	"fjacquet/recon-ledger/cmd/reconcile"
	"fjacquet/recon-ledger/cmd/reference"
	"fjacquet/recon-ledger/cmd/root"
	"fjacquet/recon-ledger/cmd/schedule"
	"fjacquet/recon-ledger/cmd/serve"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(importer.Cmd)
	root.Cmd.AddCommand(reconcile.Cmd)
	root.Cmd.AddCommand(ledger.Cmd)
	root.Cmd.AddCommand(reference.Cmd)
	root.Cmd.AddCommand(mapping.Cmd)
	root.Cmd.AddCommand(serve.Cmd)
	root.Cmd.AddCommand(schedule.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		_ = root.Teardown()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
