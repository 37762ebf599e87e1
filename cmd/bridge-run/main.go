package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/term"

	nativebridge "github.com/wippyai/native-bridge"
	"github.com/wippyai/native-bridge/config"
	"github.com/wippyai/native-bridge/handle"
	"github.com/wippyai/native-bridge/metrics"
	"github.com/wippyai/native-bridge/native"
	"github.com/wippyai/native-bridge/native/wasmlib"
	"github.com/wippyai/native-bridge/proxy"
	"github.com/wippyai/native-bridge/scenario"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var (
		library     = flag.String("library", cfg.Library, "Path to a native library compiled to wasm (empty runs dry)")
		script      = flag.String("scenario", cfg.Scenario, "Path to a scenario script")
		codecName   = flag.String("codec", cfg.Codec, "Payload codec: json or cbor")
		memPages    = flag.Uint("memory-pages", uint(cfg.MemoryLimitPages), "Guest memory limit in 64KB pages (0 = default)")
		wasi        = flag.Bool("wasi", cfg.EnableWASI, "Instantiate WASI preview1 for the guest")
		logLevel    = flag.String("log-level", cfg.LogLevel, "Log level")
		logFormat   = flag.String("log-format", cfg.LogFormat, "Log format: json or console")
		metricsAddr = flag.String("metrics-addr", cfg.MetricsAddr, "Serve /metrics, /live and /ready on this address")
		list        = flag.Bool("list", false, "List the library's bridge exports and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg.Library = *library
	cfg.Scenario = *script
	cfg.Codec = *codecName
	cfg.MemoryLimitPages = uint32(*memPages)
	cfg.EnableWASI = *wasi
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat
	cfg.MetricsAddr = *metricsAddr

	if cfg.Scenario == "" && !(*list && cfg.Library != "") {
		fmt.Fprintln(os.Stderr, "Usage: bridge-run -scenario <script.yaml> [-library <lib.wasm>] [-codec json|cbor]")
		fmt.Fprintln(os.Stderr, "       bridge-run -library <lib.wasm> -list")
		fmt.Fprintln(os.Stderr, "       bridge-run -scenario <script.yaml> -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(cfg, *list, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, listOnly, interactive bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	handle.SetLogger(logger.Named("handle"))
	proxy.SetLogger(logger.Named("proxy"))
	native.SetLogger(logger.Named("native"))
	wasmlib.SetLogger(logger.Named("wasmlib"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lib, closeLib, err := openLibrary(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLib()

	if listOnly {
		wl, ok := lib.(*wasmlib.Library)
		if !ok {
			return fmt.Errorf("-list needs -library")
		}
		fmt.Printf("Library: %s\n", cfg.Library)
		fmt.Printf("Codec: %s\n", wl.Codec().Name())
		fmt.Printf("\nBridge exports:\n")
		for _, name := range wl.Exports() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	var ready atomic.Bool
	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector, collectors.NewGoCollector())
		srv := serveMetrics(cfg.MetricsAddr, reg, func() error {
			if !ready.Load() {
				return fmt.Errorf("scenario not loaded")
			}
			return nil
		}, logger)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	s, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}
	runner, err := scenario.NewRunner(s, lib, scenario.WithObserver(collector))
	if err != nil {
		return err
	}
	ready.Store(true)

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(cfg.Scenario, s, runner)
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	printReport(report)
	if !report.OK() {
		return fmt.Errorf("%d of %d steps failed", report.Failed(), len(report.Steps))
	}
	return nil
}

// openLibrary returns the guest library, or nil for a dry run.
func openLibrary(ctx context.Context, cfg *config.Config) (nativebridge.Library, func(), error) {
	if cfg.Library == "" {
		return nil, func() {}, nil
	}
	data, err := os.ReadFile(cfg.Library)
	if err != nil {
		return nil, nil, fmt.Errorf("read library: %w", err)
	}
	libCfg, err := cfg.LibraryConfig()
	if err != nil {
		return nil, nil, err
	}
	libCfg.Name = "native"
	lib, err := wasmlib.Open(ctx, data, libCfg)
	if err != nil {
		return nil, nil, err
	}
	wasmlib.Logger().Info("library opened",
		zap.String("path", cfg.Library),
		zap.Strings("exports", lib.Exports()))
	return lib, func() { _ = lib.Close(context.Background()) }, nil
}

func printReport(r *scenario.Report) {
	name := r.Name
	if name == "" {
		name = "scenario"
	}
	fmt.Printf("Scenario: %s\n\n", name)
	for _, s := range r.Steps {
		status := "ok  "
		if !s.OK() {
			status = "FAIL"
		}
		line := fmt.Sprintf("%s %s", status, s)
		if s.Result != nil {
			line += fmt.Sprintf(" result=%v", s.Result)
		}
		if s.Err != nil {
			line += fmt.Sprintf(" err=%v", s.Err)
		}
		fmt.Println(line)
		if len(s.Failures) > 0 {
			fmt.Printf("     %s\n", strings.Join(s.Failures, "; "))
		}
	}
	fmt.Printf("\n%d steps, %d failed\n", len(r.Steps), r.Failed())
}
