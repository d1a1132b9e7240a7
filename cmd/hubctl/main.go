// Package main is hubctl, a diagnostic client for a RealityHub broker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zerodensity/realityhub-api/broker"
	"github.com/zerodensity/realityhub-api/internal/buildinfo"
	"github.com/zerodensity/realityhub-api/logging"
)

func main() {
	optionsPath := flag.String("config", "", "path to module options file")
	moduleName := flag.String("module", "tools.hubctl", "module name to present to the hub")
	host := flag.String("host", "", "hub host (overrides config)")
	port := flag.Int("port", 0, "hub port (overrides config)")
	level := flag.String("level", "info", "log level (trace, debug, info, warn, error, fatal)")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request deadline")
	flag.Parse()

	logLevel, err := logging.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: logging.ReplaceLevelNames,
	})
	// The client decorates its own records with the module name.
	logger := slog.New(handler)

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	if flag.Arg(0) == "version" {
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
		return
	}

	opts, err := resolveOptions(*optionsPath, *moduleName, *host, *port)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, *timeout)
	client, err := broker.InitModule(connectCtx, opts, broker.WithLogger(logger))
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hub connection failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Destroy()

	switch flag.Arg(0) {
	case "ping":
		runPing(ctx, client, *timeout)
	case "call":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "usage: hubctl call <vendor.module> <method> [json-arg...]")
			os.Exit(1)
		}
		runCall(ctx, client, flag.Arg(1), flag.Arg(2), flag.Args()[3:], *timeout)
	case "emit":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: hubctl emit <event> [json-arg...]")
			os.Exit(1)
		}
		runEmit(client, flag.Arg(1), flag.Args()[2:])
	case "listen":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: hubctl listen <vendor.module.event>")
			os.Exit(1)
		}
		runListen(ctx, client, flag.Arg(1))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: hubctl [flags] <command>

commands:
  ping                                  round-trip a ping through the hub
  call <vendor.module> <method> [args]  invoke a remote method (args are JSON values)
  emit <event> [args]                   emit an event owned by this module
  listen <vendor.module.event>          subscribe and print deliveries until interrupted
  version                               print build information`)
	flag.PrintDefaults()
}

// resolveOptions merges the options file (when present) with flag
// overrides. Flags win.
func resolveOptions(path, moduleName, host string, port int) (broker.ModuleOptions, error) {
	var opts broker.ModuleOptions

	if found, err := broker.FindModuleOptions(path); err == nil {
		opts, err = broker.LoadModuleOptions(found)
		if err != nil {
			return opts, err
		}
	} else if path != "" {
		// An explicit -config that cannot be read is fatal; the
		// default search paths are optional.
		return opts, err
	}

	if moduleName != "" {
		opts.ModuleName = moduleName
	}
	if host != "" {
		opts.Hub.Host = host
	}
	if port != 0 {
		opts.Hub.Port = port
	}
	if opts.Hub.Host == "" {
		return opts, fmt.Errorf("hub host is required (use -host or a config file)")
	}
	return opts, nil
}

func runPing(ctx context.Context, client *broker.Client, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ping failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("pong from %s in %s\n", client.ServerModuleName(), time.Since(start).Round(time.Millisecond))
}

func runCall(ctx context.Context, client *broker.Client, target, method string, rawArgs []string, timeout time.Duration) {
	proxy, err := client.Module(target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args, err := parseArgs(rawArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := proxy.CallTimeout(timeout).Call(ctx, method, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "call failed: %v\n", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func runEmit(client *broker.Client, event string, rawArgs []string) {
	args, err := parseArgs(rawArgs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	vendor, module := splitModule(client.ModuleName())
	if err := client.API(vendor, module).Emit(event, args...); err != nil {
		fmt.Fprintf(os.Stderr, "emit failed: %v\n", err)
		os.Exit(1)
	}
}

func runListen(ctx context.Context, client *broker.Client, event string) {
	err := client.SubscribeToAPIEvent(ctx, event, func(args []any) {
		out, err := json.Marshal(args)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339), event, out)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe failed: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
}

// parseArgs decodes each argument as JSON, falling back to a plain
// string for bare words.
func parseArgs(raw []string) ([]any, error) {
	args := make([]any, 0, len(raw))
	for _, r := range raw {
		var v any
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			v = r
		}
		args = append(args, v)
	}
	return args, nil
}

func splitModule(name string) (vendor, module string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) < 2 {
		return name, ""
	}
	return parts[0], parts[1]
}
