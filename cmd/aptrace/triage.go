package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/usestring/aptrace/internal/cache"
	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/plan"
	"github.com/usestring/aptrace/internal/triage"
)

func newTriageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage <log> <service> <port>",
		Short: "Replay every unique connection against a target and report faults",
		Long: `Replay every unique connection of <log> against <service> and print the
offsets whose replay made the target emit the fault marker.

Unless --attach is set, <service> is launched under user-mode qemu once per
incoming connection on <port>. Settings come from the TRIAGE_* environment,
then --plan, then flags.`,
		Args: cobra.ExactArgs(3),
		RunE: runTriage,
	}

	f := cmd.Flags()
	f.String("plan", "", "JSON triage plan")
	f.Int("workers", 0, "concurrent tests")
	f.String("marker", "", "output substring confirming a fault")
	f.String("interpreter", "", "replay script interpreter")
	f.String("arch", "", "target architecture, x86_64 or mips")
	f.Duration("timeout", 0, "per-test timeout")
	f.Bool("attach", false, "test an already running target instead of launching <service>")
	f.Bool("json", false, "print the full report as JSON")
	return cmd
}

func runTriage(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[2])
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", args[2])
	}

	cfg := config.Load()
	f := cmd.Flags()
	if path, _ := f.GetString("plan"); path != "" {
		p, err := plan.Load(path)
		if err != nil {
			return err
		}
		p.Apply(cfg)
	}
	cfg.TriagePort = port
	if f.Changed("workers") {
		cfg.TriageWorkers, _ = f.GetInt("workers")
	}
	if f.Changed("marker") {
		cfg.TriageMarker, _ = f.GetString("marker")
	}
	if f.Changed("interpreter") {
		cfg.TriageInterpreter, _ = f.GetString("interpreter")
	}
	if f.Changed("arch") {
		cfg.TriageArch, _ = f.GetString("arch")
	}
	if f.Changed("timeout") {
		cfg.TriageTestTimeout, _ = f.GetDuration("timeout")
	}

	r, err := cache.OpenLog(args[0], cfg.HeaderCacheMaxItems)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := cmd.Context()
	if attach, _ := f.GetBool("attach"); !attach {
		sup, err := triage.Supervise(ctx, net.JoinHostPort(cfg.TriageHost, strconv.Itoa(port)), triage.Emulator{
			Service:  args[1],
			Arch:     cfg.TriageArch,
			Binary:   cfg.TriageEmulator,
			Preload:  cfg.TriagePreload,
			MipsRoot: cfg.TriageMipsRoot,
		})
		if err != nil {
			return err
		}
		defer sup.Close()
	}

	ex := &triage.ScriptExecutor{
		Interpreter: cfg.TriageInterpreter,
		Timeout:     cfg.TriageTestTimeout,
	}
	drv := triage.NewDriver(r, ex, triage.Config{
		Workers:     cfg.TriageWorkers,
		Host:        cfg.TriageHost,
		Port:        cfg.TriagePort,
		Marker:      cfg.TriageMarker,
		ReadTimeout: cfg.TriageReadTimeout,
	})

	report, err := drv.Run(ctx)
	if report != nil {
		if perr := printReport(cmd, report); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func printReport(cmd *cobra.Command, report *triage.Report) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, off := range report.ConfirmedOffsets {
		if _, err := fmt.Fprintln(out, off); err != nil {
			return err
		}
	}
	slog.Info(report.Summary())
	return nil
}
