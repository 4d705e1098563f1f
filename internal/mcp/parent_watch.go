package mcp

import (
	"context"
	"os"
	"time"

	"ledgerflow/internal/logging"
)

// WatchParent cancels the server when the parent process exits, so stdio
// servers orphaned by their client do not linger. It never reads stdin;
// the stdio transport owns it.
func WatchParent(ctx context.Context, cancel context.CancelFunc, interval time.Duration) {
	ppid := os.Getppid()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					logging.New("mcp").Warn("parent process exited, shutting down", "parent_pid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
