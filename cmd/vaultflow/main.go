package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/emarren/vaultflow/internal/history"
	"github.com/emarren/vaultflow/internal/trigger"
	"github.com/emarren/vaultflow/pkg/schema"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	cfg := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "list":
		return cmdList(ctx, cfg)
	case "run":
		return cmdRun(ctx, cfg, args[1:])
	case "hotkey":
		return cmdHotkey(ctx, cfg, args[1:])
	case "history":
		return cmdHistory(ctx, cfg, args[1:])
	case "event":
		return cmdEvent(ctx, cfg, args[1:])
	case "serve":
		return cmdServe(ctx, cfg)
	case "version":
		fmt.Println("vaultflow", version)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: vaultflow <command>

commands:
  list                    list workflows found in the vault
  run <name> [-var k=v]   execute a workflow by name
  hotkey <name>           execute a workflow as a hotkey invocation
  history [run-id]        show past runs, or the steps of one run
  event <type> <path>     match one document event against the bindings
  serve                   run cron schedules until interrupted
  version                 print the version`)
}

func cmdList(ctx context.Context, cfg Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	found, err := a.loader.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	for _, fw := range found {
		name := fw.Definition.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%-30s %3d nodes  %s\n", name, len(fw.Definition.Nodes), fw.Path)
	}
	return nil
}

func cmdRun(ctx context.Context, cfg Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var vars varFlags
	fs.Var(&vars, "var", "initial variable as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run takes exactly one workflow name")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.RunWorkflow(ctx, fs.Arg(0), vars.values)
}

// cmdHotkey runs a workflow the way a bound hotkey would: the host passes
// the active document and selection, and prompt nodes substitute them.
func cmdHotkey(ctx context.Context, cfg Config, args []string) error {
	fs := flag.NewFlagSet("hotkey", flag.ContinueOnError)
	file := fs.String("file", "", "path of the document active in the editor")
	selection := fs.String("selection", "", "text currently selected in the editor")
	var vars varFlags
	fs.Var(&vars, "var", "initial variable as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("hotkey takes exactly one workflow name")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.RunHotkey(ctx, fs.Arg(0), *file, *selection, vars.values)
}

func cmdHistory(ctx context.Context, cfg Config, args []string) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		runs, err := a.recorder.ListRuns(ctx, history.RunFilter{Limit: 50})
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %-10s %-20s %s\n",
				r.ID, string(r.State), r.WorkflowName, r.StartedAt.Format(time.RFC3339))
		}
		return nil
	}

	entries, err := a.recorder.ListEntries(ctx, args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = e.Error
		}
		fmt.Printf("%3d  %-20s %-16s %s\n", e.Seq, e.NodeID, string(e.NodeType), status)
		for _, d := range e.Diagnostics {
			fmt.Printf("     ! %s\n", d)
		}
	}
	return nil
}

// cmdEvent feeds one document event through the trigger bindings and runs
// every activated workflow. The process handles one event and exits, so the
// matcher's modify debounce is disabled here; hosts that watch a vault and
// want save bursts collapsed should hold the matcher open and debounce there.
func cmdEvent(ctx context.Context, cfg Config, args []string) error {
	fs := flag.NewFlagSet("event", flag.ContinueOnError)
	oldPath := fs.String("old-path", "", "previous path for rename events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("event takes a type and a path")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ev := trigger.Event{
		Type:    schema.EventType(fs.Arg(0)),
		Path:    fs.Arg(1),
		OldPath: *oldPath,
	}
	if ev.Type != schema.EventDelete {
		if content, err := a.store.Read(ctx, ev.Path); err == nil {
			ev.Content = content
		}
	}

	matcher := trigger.NewMatcher(cfg.Bindings, a.filters, a.logger, trigger.WithDebounce(0))
	for _, act := range matcher.Match(ctx, ev) {
		if err := a.RunWorkflow(ctx, act.Workflow, act.Scope); err != nil {
			return err
		}
	}
	return nil
}

func cmdServe(ctx context.Context, cfg Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(cfg.Schedules) == 0 {
		return fmt.Errorf("no schedules configured in %s", settingsPath())
	}

	cron, err := trigger.NewCronTrigger(cfg.Schedules, a, a.logger)
	if err != nil {
		return err
	}
	if err := cron.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("serving", "schedules", len(cfg.Schedules))
	<-ctx.Done()
	cron.Stop()
	return nil
}

// varFlags collects repeated -var key=value flags.
type varFlags struct {
	values map[string]any
}

func (v *varFlags) String() string { return "" }

func (v *varFlags) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("-var wants key=value, got %q", s)
	}
	if v.values == nil {
		v.values = make(map[string]any)
	}
	v.values[key] = value
	return nil
}
