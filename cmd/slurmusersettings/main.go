// slurmusersettings reconciles the OS user/group database against the Slurm
// accounting database. It prints one idempotent sacctmgr command per user
// that needs creating, changing, or deleting, plus ###-prefixed diagnostics,
// all on stdout. Nothing is executed: the output is meant for operator
// review or piping to a shell.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"

	"slurmtools/config"
	"slurmtools/internal/pkg/client/getent"
	ldapc "slurmtools/internal/pkg/client/ldap"
	"slurmtools/internal/pkg/client/sacctmgr"
	slurmdbc "slurmtools/internal/pkg/client/slurmdb"
	"slurmtools/internal/pkg/diag"
	"slurmtools/internal/pkg/log"
	"slurmtools/internal/pkg/model"
	"slurmtools/internal/pkg/policy"
	"slurmtools/internal/pkg/reconcile"
)

func main() {
	var (
		configFile string
		logOutput  string
		logFormat  string
		logFile    string
		logLevel   string
	)
	app := kingpin.New(filepath.Base(os.Args[0]), "Reconcile OS users against the Slurm accounting database.")
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to YAML config file.").Short('c').Default("slurmtools.yaml").Envar("SLURMTOOLS_CONFIG").StringVar(&configFile)
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file]. Logs default to stderr so stdout stays clean for commands.").Default("stderr").EnumVar(&logOutput, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&logFormat, "json", "text")
	app.Flag("log.file", "Log file path when --log.output=file.").PlaceHolder("PATH").StringVar(&logFile)
	app.Version(version.Print("slurmusersettings"))

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to parse commandline arguments: %w", err))
		app.Usage(os.Args[1:])
		os.Exit(2)
	}

	logger, logClose, err := log.NewLogger(logOutput, logFormat, logFile, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", configFile), slog.Any("err", err))
		os.Exit(1)
	}

	ctx := context.Background()

	ident, identClose, err := identitySource(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize identity source", slog.Any("err", err))
		os.Exit(1)
	}
	defer identClose()

	sched, schedClose, err := schedulerSource(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize scheduler state source", slog.Any("err", err))
		os.Exit(1)
	}
	defer schedClose()

	// All sources are read in full before any resolution; a failure here
	// aborts the run with no commands printed at all, so the operator never
	// sees a partial diff.
	snap, err := reconcile.TakeSnapshot(ctx, ident, sched)
	if err != nil {
		logger.Error("failed to snapshot cluster state", slog.Any("err", err))
		os.Exit(1)
	}

	d := diag.New(os.Stdout)

	pol := policy.NewSet()
	pol.SetDefault(model.Fairshare, cfg.Defaults.Fairshare)
	pol.SetDefault(model.GrpTRES, cfg.Defaults.GrpTRES)
	pol.SetDefault(model.GrpTRESRunMins, cfg.Defaults.GrpTRESRunMins)
	if cfg.PolicyFile != "" {
		pol, err = policy.Load(cfg.PolicyFile, snap.Groups, snap.State.Users, pol, d)
		if err != nil {
			logger.Error("failed to read policy file", slog.String("path", cfg.PolicyFile), slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		d.Warningf("no policy file configured, proceeding with defaults only")
	}

	r := &reconcile.Reconciler{MinUID: *cfg.MinUID, Policy: pol, Diag: d}
	for _, act := range r.Plan(snap) {
		fmt.Println(sacctmgr.Render(cfg.Sacctmgr, act))
	}
}

// identitySource wires the configured identity backend. The close func is
// a no-op for getent.
func identitySource(cfg *config.Config, logger *slog.Logger) (reconcile.IdentitySource, func(), error) {
	switch cfg.Identity.Source {
	case "ldap":
		cli, err := ldapc.New(cfg.Identity.LDAP)
		if err != nil {
			return nil, nil, err
		}
		return cli, cli.Close, nil
	default:
		cli := (&getent.Client{}).Set(exec.CommandContext, logger)
		return cli, func() {}, nil
	}
}

func schedulerSource(cfg *config.Config, logger *slog.Logger) (reconcile.SchedulerStateSource, func(), error) {
	switch cfg.Scheduler.Source {
	case "slurmdb":
		cli, err := slurmdbc.New(cfg.Scheduler.Slurmdb, cfg.Cluster, logger)
		if err != nil {
			return nil, nil, err
		}
		return cli, func() { _ = cli.Close() }, nil
	default:
		cli := (&sacctmgr.Client{}).Set(cfg.Sacctmgr, exec.CommandContext, logger)
		return cli, func() {}, nil
	}
}
