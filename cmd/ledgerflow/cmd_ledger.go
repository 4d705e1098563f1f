package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerflow/internal/format"
	"ledgerflow/internal/record"
)

type ledgerImportOptions struct {
	file    string
	ownerID string
}

type ledgerListOptions struct {
	ownerID string
	from    string
	to      string
	limit   int
	format  string
}

func newLedgerCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Seed and inspect the ledger store",
	}
	cmd.AddCommand(newLedgerImportCmd(g), newLedgerListCmd(g))
	return cmd
}

func newLedgerImportCmd(g *globalOptions) *cobra.Command {
	o := &ledgerImportOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import entries from a JSON or YAML file; existing IDs are skipped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raws, err := readRecords(o.file)
			if err != nil {
				return err
			}
			st, err := openStore(g.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			records := record.NormalizeAll(raws)
			n, err := st.Import(cmd.Context(), o.ownerID, records)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d entries for %s\n", n, len(records), o.ownerID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "JSON or YAML file with ledger entries (required)")
	f.StringVar(&o.ownerID, "owner", "", "Ledger owner (required)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newLedgerListCmd(g *globalOptions) *cobra.Command {
	o := &ledgerListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the owner's ledger entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := format.ParseMode(o.format)
			if err != nil {
				return err
			}
			st, err := openStore(g.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.Fetch(cmd.Context(), record.Filter{OwnerID: o.ownerID, From: o.from, To: o.to, Limit: o.limit})
			if err != nil {
				return err
			}

			t := format.NewTable(mode)
			t.Header("ID", "Date", "Amount", "Description", "Category")
			t.Columns(
				format.ColumnConfig{Number: 3, Align: format.AlignRight},
				format.ColumnConfig{Number: 4, MaxWidth: 48},
			)
			for _, e := range entries {
				t.Row(e.SourceID, e.Date, format.Amount(e.Amount), e.Description, e.Category)
			}
			totals := record.Sum(entries)
			t.Footer("", fmt.Sprintf("%d entries", totals.Count), format.Amount(totals.Sum), "", "")
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.ownerID, "owner", "", "Ledger owner (required)")
	f.StringVar(&o.from, "from", "", "Earliest entry date, YYYY-MM-DD")
	f.StringVar(&o.to, "to", "", "Latest entry date, YYYY-MM-DD")
	f.IntVar(&o.limit, "limit", 0, "Maximum number of entries (0 = all)")
	f.StringVar(&o.format, "format", "ascii", "Table format: ascii or markdown")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
