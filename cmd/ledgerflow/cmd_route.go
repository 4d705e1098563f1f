package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledgerflow/internal/auth"
	"ledgerflow/internal/display"
	"ledgerflow/internal/intent"
	"ledgerflow/internal/orchestrate"
	"ledgerflow/internal/store"
)

type routeOptions struct {
	message     string
	ownerID     string
	userID      string
	historyPath string
}

type routeOutput struct {
	intent.Response
	IntentName string `json:"intentName"`
}

func newRouteCmd(g *globalOptions) *cobra.Command {
	o := &routeOptions{}
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Classify a message and dispatch it to one intent handler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoute(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.message, "message", "m", "", "The user's message (required)")
	f.StringVar(&o.ownerID, "owner", "", "Owner of the expense data")
	f.StringVar(&o.userID, "user", "", "Authenticated user id forwarded to handlers")
	f.StringVar(&o.historyPath, "history", "", "JSON file with recent turns, oldest first")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func runRoute(cmd *cobra.Command, g *globalOptions, o *routeOptions) error {
	var history []intent.Turn
	if o.historyPath != "" {
		data, err := os.ReadFile(o.historyPath)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if err := json.Unmarshal(data, &history); err != nil {
			return fmt.Errorf("parse history: %w", err)
		}
	}

	// Routing never reads the ledger.
	svc, err := orchestrate.New(g.cfg, orchestrate.Deps{Ledger: store.NewMemStore()})
	if err != nil {
		return err
	}
	resp := svc.RunIntentRouting(cmd.Context(), orchestrate.IntentRequest{
		Message: o.message,
		OwnerID: o.ownerID,
		Auth:    auth.Context{UserID: o.userID},
		History: history,
	})
	if err := writeJSON(cmd.OutOrStdout(), routeOutput{Response: resp, IntentName: display.Intent(string(resp.Intent))}); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("route: %s", resp.Error)
	}
	return nil
}
