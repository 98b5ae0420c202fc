// gravityctl applies declarative configuration to Pi-hole v6 instances.
// It reads YAML playbooks of module tasks (blocking, domain rules,
// subscription lists, settings, local DNS records), runs them against the
// appliance's REST API, and reports a uniform per-task result. It can
// also serve query statistics as Prometheus metrics and verify filtering
// with live DNS probes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"gitlab.bluewillows.net/root/gravityctl/internal/config"
	"gitlab.bluewillows.net/root/gravityctl/internal/exporter"
	"gitlab.bluewillows.net/root/gravityctl/internal/playbook"
	"gitlab.bluewillows.net/root/gravityctl/internal/probe"
	"gitlab.bluewillows.net/root/gravityctl/internal/runner"
	"gitlab.bluewillows.net/root/gravityctl/modules/blocking"
	"gitlab.bluewillows.net/root/gravityctl/modules/configuration"
	"gitlab.bluewillows.net/root/gravityctl/modules/domains"
	"gitlab.bluewillows.net/root/gravityctl/modules/lists"
	"gitlab.bluewillows.net/root/gravityctl/modules/localdns"
	"gitlab.bluewillows.net/root/gravityctl/modules/maintenance"
	"gitlab.bluewillows.net/root/gravityctl/modules/netinfo"
	"gitlab.bluewillows.net/root/gravityctl/modules/stats"
	"gitlab.bluewillows.net/root/gravityctl/pkg/httputil"
	"gitlab.bluewillows.net/root/gravityctl/pkg/module"
	"gitlab.bluewillows.net/root/gravityctl/pkg/pihole"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-08-25"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("a command is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	switch args[0] {
	case "apply":
		return runApply(args[1:], cfg, logger)
	case "exporter":
		return runExporter(args[1:], logger)
	case "probe":
		return runProbe(args[1:], logger)
	case "modules":
		for _, name := range newRegistry().Names() {
			fmt.Println(name)
		}
		return nil
	case "version":
		fmt.Printf("gravityctl %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `gravityctl - declarative Pi-hole v6 management

Usage:
  gravityctl apply [-check] [-json] <playbook.yml>
  gravityctl exporter -config <exporter.toml>
  gravityctl probe -resolver <host[:port]> <domain>...
  gravityctl modules
  gravityctl version
`)
}

// newRegistry registers every task module.
func newRegistry() *module.Registry {
	registry := module.NewRegistry()
	registry.Register(blocking.ModuleName, blocking.Factory)
	registry.Register(maintenance.ModuleName, maintenance.Factory)
	registry.Register(domains.ModuleName, domains.Factory)
	registry.Register(lists.ModuleName, lists.Factory)
	registry.Register(configuration.ModuleName, configuration.Factory)
	registry.Register(stats.ModuleName, stats.Factory)
	registry.Register(netinfo.ModuleName, netinfo.Factory)
	registry.Register(localdns.ModuleName, localdns.Factory)
	return registry
}

func runApply(args []string, cfg *config.Config, logger *slog.Logger) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	check := fs.Bool("check", false, "dry run: report what would change without changing it")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("apply requires exactly one playbook path")
	}

	registry := newRegistry()

	pb, err := playbook.Load(fs.Arg(0), registry)
	if err != nil {
		return err
	}

	logger.Info("playbook loaded",
		slog.String("path", fs.Arg(0)),
		slog.String("summary", pb.Summary()),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := runner.New(registry,
		runner.WithLogger(logger),
		runner.WithCheckMode(*check),
	)

	summary, err := r.Run(ctx, pb, cfg)
	if err != nil {
		return err
	}

	if *jsonOut {
		if err := summary.WriteJSON(os.Stdout); err != nil {
			return err
		}
	} else {
		if err := summary.WriteText(os.Stdout); err != nil {
			return err
		}
	}

	if !summary.OK() {
		return fmt.Errorf("%d of %d tasks failed", summary.Failed, len(summary.Results))
	}
	return nil
}

func runExporter(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("exporter", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the exporter TOML config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("exporter requires -config")
	}

	cfg, err := exporter.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	httpClient := httputil.NewClient(&httputil.ClientConfig{
		Timeout:       cfg.ScrapeTimeout.Duration,
		TLSSkipVerify: cfg.TLSSkipVerify,
		Logger:        logger,
	})
	client := pihole.New(cfg.URL, cfg.Password,
		pihole.WithLogger(logger),
		pihole.WithHTTPClient(httpClient),
	)

	collector := exporter.NewCollector(client, Version, cfg.ScrapeTimeout.Duration, logger)
	checker := func(ctx context.Context) error {
		_, err := client.StatsSummary(ctx)
		return err
	}

	srv := exporter.NewServer(cfg.Listen, collector, checker, logger)
	srv.Start()

	logger.Info("gravityctl exporter started",
		slog.String("version", Version),
		slog.String("target", cfg.URL),
		slog.String("listen", cfg.Listen),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("exporter shutdown error", slog.String("error", err.Error()))
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := client.Close(closeCtx); err != nil {
		logger.Debug("session close failed", slog.String("error", err.Error()))
	}

	return nil
}

func runProbe(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	resolver := fs.String("resolver", "", "Pi-hole resolver address, host or host:port")
	timeout := fs.Duration("timeout", 5*time.Second, "per-query timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *resolver == "" {
		return fmt.Errorf("probe requires -resolver")
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("probe requires at least one domain")
	}

	p := probe.New(*resolver,
		probe.WithLogger(logger),
		probe.WithTimeout(*timeout),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var failed bool
	for _, domain := range fs.Args() {
		outcome, err := p.Check(ctx, domain)
		if err != nil {
			fmt.Printf("%-40s error: %v\n", domain, err)
			failed = true
			continue
		}
		fmt.Printf("%-40s %-9s %s (%s)\n",
			outcome.Domain, outcome.Verdict, outcome.Rcode, outcome.RTT.Round(time.Millisecond))
	}

	if failed {
		return fmt.Errorf("one or more probes failed")
	}
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
