// ledgerflow routes chat messages to intents and reconciles expense records
// against a SQL ledger.
//
// Usage:
//
//	ledgerflow route --message "sync my bank statement" [--owner u1] [--history turns.json]
//	ledgerflow reconcile --records statement.yaml --owner u1 [--auto-sync] [--format markdown]
//	ledgerflow ledger import --file entries.json --owner u1
//	ledgerflow ledger list --owner u1
//	ledgerflow graph --pipeline reconcile
//	ledgerflow serve
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
