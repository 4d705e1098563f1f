package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerflow/internal/auth"
	"ledgerflow/internal/format"
	"ledgerflow/internal/orchestrate"
	"ledgerflow/internal/reconcile"
)

type reconcileOptions struct {
	recordsPath string
	ownerID     string
	userID      string
	autoSync    bool
	format      string
}

func newReconcileCmd(g *globalOptions) *cobra.Command {
	o := &reconcileOptions{}
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare external records with the owner's ledger",
		Long: `Reads records from a JSON or YAML file, compares them with the owner's
ledger entries and prints matches, discrepancies and suggested actions.

With --auto-sync, records missing from the ledger are created in it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.recordsPath, "records", "r", "", "JSON or YAML file with the records to compare (required)")
	f.StringVar(&o.ownerID, "owner", "", "Ledger owner (required)")
	f.StringVar(&o.userID, "user", "", "Authenticated user id forwarded to collaborators")
	f.BoolVar(&o.autoSync, "auto-sync", false, "Create ledger entries for records missing from the ledger")
	f.StringVar(&o.format, "format", "ascii", "Output format: ascii, markdown or json")
	_ = cmd.MarkFlagRequired("records")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runReconcile(cmd *cobra.Command, g *globalOptions, o *reconcileOptions) error {
	var mode format.Mode
	if o.format != "json" {
		m, err := format.ParseMode(o.format)
		if err != nil {
			return err
		}
		mode = m
	}
	raws, err := readRecords(o.recordsPath)
	if err != nil {
		return err
	}

	svc, st, err := openService(g.cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := svc.RunReconciliation(cmd.Context(), orchestrate.ReconcileRequest{
		Records: raws,
		OwnerID: o.ownerID,
		Auth:    auth.Context{UserID: o.userID},
		Options: reconcile.Options{AutoSync: o.autoSync},
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	out := cmd.OutOrStdout()
	if o.format == "json" {
		return writeJSON(out, rep)
	}
	_, err = fmt.Fprint(out, format.Report(rep, mode))
	return err
}
