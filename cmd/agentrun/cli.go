package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/agentrun/agent"
	"github.com/BaSui01/agentrun/agent/persistence"
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// withStore loads the configuration at configPath and runs fn against the
// configured run state store.
func withStore(ctx context.Context, configPath string, fn func(persistence.Store) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	h, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h.store)
}

func runList(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("runs")
	configPath := fs.String("config", "", "Path to config file")
	status := fs.String("status", "", "Only runs with this status")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	return withStore(ctx, *configPath, func(s persistence.Store) error {
		recs, err := s.List(ctx, persistence.ListFilter{Status: agent.RunStatus(*status), Limit: *limit})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n",
				rec.RunID, rec.Status, rec.CurrentAgent, rec.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	})
}

func runInspect(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("inspect")
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "Serialized state file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		return printSummary(stdout, data)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect needs a run id or --file", errUsage)
	}
	return withStore(ctx, *configPath, func(s persistence.Store) error {
		rec, err := s.Load(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return printSummary(stdout, rec.State)
	})
}

// runDecide records one decision for every --call of a suspended run,
// either in the configured store or in a state file rewritten in place.
func runDecide(ctx context.Context, args []string, verb string, stdout io.Writer) error {
	fs := newFlagSet(verb)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "Serialized state file, rewritten in place")
	var calls stringList
	fs.Var(&calls, "call", "Pending call id (repeatable)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if len(calls) == 0 {
		return fmt.Errorf("%w: %s needs at least one --call", errUsage, verb)
	}

	decision := agent.DecisionApproved
	if verb == "reject" {
		decision = agent.DecisionRejected
	}
	decisions := make(map[string]agent.ApprovalDecision, len(calls))
	for _, id := range calls {
		decisions[id] = decision
	}

	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		patched, err := agent.ApplyDecisions(data, decisions)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(*file, patched); err != nil {
			return err
		}
		return printSummary(stdout, patched)
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: %s needs a run id or --file", errUsage, verb)
	}
	return withStore(ctx, *configPath, func(s persistence.Store) error {
		rec, err := s.Load(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if rec.Status != agent.StatusSuspended {
			return fmt.Errorf("run %s is %s, not suspended", rec.RunID, rec.Status)
		}
		patched, err := agent.ApplyDecisions(rec.State, decisions)
		if err != nil {
			return err
		}
		if _, err := s.Update(ctx, patched, rec.Version); err != nil {
			return err
		}
		return printSummary(stdout, patched)
	})
}

func printSummary(w io.Writer, state []byte) error {
	summary, err := agent.InspectState(state)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func runHealthCheck(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("health")
	addr := fs.String("addr", "http://localhost:8080", "Service address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(*addr, "/")+"/ready", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	fmt.Fprintln(stdout, "OK")
	return nil
}
