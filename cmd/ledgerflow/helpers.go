package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"ledgerflow/internal/config"
	"ledgerflow/internal/orchestrate"
	"ledgerflow/internal/record"
	"ledgerflow/internal/store"
	"ledgerflow/internal/telemetry"
)

// readRecords loads a list of loosely-shaped records from a JSON or YAML
// file. A top-level object with a "records" key is accepted too.
func readRecords(path string) ([]record.Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var list []map[string]any
	if err := yaml.Unmarshal(data, &list); err != nil {
		var wrapped struct {
			Records []map[string]any `yaml:"records"`
		}
		if werr := yaml.Unmarshal(data, &wrapped); werr != nil {
			return nil, fmt.Errorf("parse records %s: %w", path, err)
		}
		list = wrapped.Records
	}
	out := make([]record.Raw, len(list))
	for i, m := range list {
		out[i] = record.Raw(m)
	}
	return out, nil
}

// openStore opens the configured ledger.
func openStore(cfg config.Config) (*store.SqlStore, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// openService opens the ledger and compiles both workflows. The caller
// closes the returned store.
func openService(cfg config.Config, metrics *telemetry.Metrics) (*orchestrate.Service, *store.SqlStore, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := orchestrate.New(cfg, orchestrate.Deps{Ledger: st, Metrics: metrics})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return svc, st, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
