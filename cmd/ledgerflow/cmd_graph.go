package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerflow/internal/orchestrate"
	"ledgerflow/internal/store"
)

func newGraphCmd(g *globalOptions) *cobra.Command {
	var pipeline string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print a workflow as a Mermaid flowchart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !orchestrate.ValidPipeline(pipeline) {
				return fmt.Errorf("unknown pipeline %q (want one of %v)", pipeline, orchestrate.Pipelines())
			}
			svc, err := orchestrate.New(g.cfg, orchestrate.Deps{Ledger: store.NewMemStore()})
			if err != nil {
				return err
			}
			out, err := svc.Mermaid(pipeline)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pipeline, "pipeline", "p", orchestrate.PipelineReconcile, "Pipeline: intent or reconcile")
	return cmd
}
