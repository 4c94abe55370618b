package main

import (
	"context"
	goflag "flag"
	"fmt"
	"net/netip"
	"os"

	"github.com/go-logr/logr"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/ddnsd/internal/config"
	"github.com/yuriy-kovalchuk/ddnsd/internal/controller"
	_ "github.com/yuriy-kovalchuk/ddnsd/internal/dns/providers"
	"github.com/yuriy-kovalchuk/ddnsd/internal/resolver"
)

var Version = "dev"

type options struct {
	logLevel    string
	configFile  string
	once        bool
	resolver    string
	concurrency int
	version     bool
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func bindFlags(fs *flag.FlagSet, o *options) {
	fs.StringVarP(&o.logLevel, "log-level", "l", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error) [$LOG_LEVEL]")
	fs.StringVarP(&o.configFile, "config-file", "c", envOr("CONFIG_FILE", "ddns.yaml"), "path to the configuration file [$CONFIG_FILE]")
	fs.BoolVarP(&o.once, "once", "o", false, "run a single reconciliation cycle and exit")
	fs.StringVar(&o.resolver, "resolver", envOr("DDNS_RESOLVER", ""), "DNS server used to discover the machine IP, as ip or ip:port [$DDNS_RESOLVER]")
	fs.IntVar(&o.concurrency, "concurrency", 4, "maximum number of domains reconciled in parallel")
	fs.BoolVar(&o.version, "version", false, "print the version and exit")
}

// levelOverride returns the level selected by --log-level. It reports false
// when only --zap-log-level was given so that flag keeps effect.
func levelOverride(fs *flag.FlagSet, o options) (zapcore.Level, bool, error) {
	if fs.Changed("zap-log-level") && !fs.Changed("log-level") && os.Getenv("LOG_LEVEL") == "" {
		return 0, false, nil
	}
	level, err := zapcore.ParseLevel(o.logLevel)
	if err != nil {
		return 0, false, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}
	return level, true, nil
}

func main() {
	var o options
	bindFlags(flag.CommandLine, &o)

	zapOpts := zap.Options{}
	zapFlags := goflag.NewFlagSet("zap", goflag.ExitOnError)
	zapOpts.BindFlags(zapFlags)
	flag.CommandLine.AddGoFlagSet(zapFlags)
	flag.Parse()

	if o.version {
		fmt.Println(Version)
		return
	}

	logOpts := []zap.Opts{zap.UseFlagOptions(&zapOpts)}
	level, override, err := levelOverride(flag.CommandLine, o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if override {
		logOpts = append(logOpts, zap.Level(level))
	}
	ctrl.SetLogger(zap.New(logOpts...))

	if err := run(ctrl.SetupSignalHandler(), o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	log := ctrl.Log.WithName("setup")

	log.Info("starting ddnsd", "version", Version)

	cfg, err := config.Load(o.configFile)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	log.Info("loaded config", "path", o.configFile, "domains", len(cfg.Entries), "interval", cfg.Interval().String())

	tasks, err := controller.TasksFromConfig(ctx, ctrl.Log, cfg)
	if err != nil {
		return fmt.Errorf("unable to create DNS providers: %w", err)
	}

	server, err := resolverServer(ctx, log, o.resolver)
	if err != nil {
		return err
	}
	log.Info("using resolver", "server", server.String())

	scheduler := &controller.Scheduler{
		Resolver:    resolver.New(server, resolver.WithLogger(ctrl.Log.WithName("resolver"))),
		Tasks:       tasks,
		Interval:    cfg.Interval(),
		Once:        o.once,
		Concurrency: o.concurrency,
		Log:         ctrl.Log.WithName("scheduler"),
	}
	if err := scheduler.Run(ctx); err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	log.Info("shutting down")
	return nil
}

// resolverServer returns the explicitly configured server, or bootstraps one.
func resolverServer(ctx context.Context, log logr.Logger, explicit string) (netip.AddrPort, error) {
	if explicit != "" {
		server, err := resolver.ParseServer(explicit)
		if err != nil {
			return netip.AddrPort{}, fmt.Errorf("invalid --resolver: %w", err)
		}
		return server, nil
	}
	return resolver.Bootstrap(ctx, log.WithName("bootstrap"), nil), nil
}
