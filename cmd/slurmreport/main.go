// slurmreport aggregates the live scheduling queue into per-user and
// per-account utilization and a node state inventory. By default it prints
// text tables once and exits; with --serve it stays up and exposes the same
// aggregation as JSON.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/version"

	"slurmtools/internal/app/router"
	reportmod "slurmtools/internal/module/report"
	"slurmtools/internal/pkg/client/slurmctl"
	"slurmtools/internal/pkg/log"
	"slurmtools/internal/pkg/report"
)

func main() {
	var (
		partition       string
		serveAddr       string
		shutdownTimeout time.Duration
		logOutput       string
		logFormat       string
		logFile         string
		logLevel        string
	)
	app := kingpin.New(filepath.Base(os.Args[0]), "Report per-user and per-account utilization of the Slurm queue.")
	app.HelpFlag.Short('h')
	app.Flag("partition", "Restrict the node inventory to one partition.").Short('p').StringVar(&partition)
	app.Flag("serve", "Serve the report over HTTP on this address (e.g. :8080) instead of printing once.").PlaceHolder("ADDR").StringVar(&serveAddr)
	app.Flag("shutdown-timeout", "Graceful shutdown timeout in serve mode.").Default("10s").DurationVar(&shutdownTimeout)
	app.Flag("log.level", "Log level, one of [debug, info, warn, error].").Default("info").EnumVar(&logLevel, "debug", "info", "warn", "error")
	app.Flag("log.output", "Log output, one of [stdout, stderr, file].").Default("stderr").EnumVar(&logOutput, "stdout", "stderr", "file")
	app.Flag("log.format", "Log format, one of [json, text].").Default("text").EnumVar(&logFormat, "json", "text")
	app.Flag("log.file", "Log file path when --log.output=file.").PlaceHolder("PATH").StringVar(&logFile)
	app.Version(version.Print("slurmreport"))

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

	cli := (&slurmctl.Client{}).Set(exec.CommandContext, logger)
	slurmctl.SetDefault(cli)

	if serveAddr == "" {
		runOnce(cli, partition, logger)
		return
	}
	serve(serveAddr, shutdownTimeout, logger)
}

func runOnce(cli *slurmctl.Client, partition string, logger *slog.Logger) {
	ctx := context.Background()
	jobs, err := cli.GetJobs(ctx)
	if err != nil {
		logger.Error("failed to read queue", slog.Any("err", err))
		os.Exit(1)
	}
	nodes, err := cli.GetNodes(ctx, partition)
	if err != nil {
		logger.Error("failed to read node inventory", slog.Any("err", err))
		os.Exit(1)
	}
	report.Build(jobs, nodes).WriteText(os.Stdout)
}

func serve(addr string, shutdownTimeout time.Duration, logger *slog.Logger) {
	r := router.New()
	router.Register(reportmod.Router{})
	router.MountAll(r)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		logger.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	case <-quit:
	}
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	logger.Info("server exiting")
}
