package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/server"
	"mercator-hq/warden/pkg/telemetry"
	"mercator-hq/warden/pkg/warden"
	"mercator-hq/warden/pkg/warden/filter"
	"mercator-hq/warden/pkg/warden/policyfile"
)

// cacheReportInterval is how often cache sizes are published as metrics.
const cacheReportInterval = 15 * time.Second

var runFlags struct {
	listenAddress string
	upstream      string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the enforcing proxy",
	Long: `Register the declared policies with the Warden authority and start the
enforcing proxy in front of the upstream service.

On SIGINT or SIGTERM the proxy drains in-flight requests, usage is saved
when a storage backend is configured, and the client unregisters.

Examples:
  # Start with default config
  warden run

  # Start with custom config and upstream
  warden run --config /etc/warden/warden.yaml --upstream http://localhost:9000`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override proxy listen address")
	runCmd.Flags().StringVar(&runFlags.upstream, "upstream", "", "override upstream URL")
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.upstream != "" {
		cfg.Proxy.Upstream = runFlags.upstream
	}
	if cfg.Proxy.Upstream == "" {
		return cli.NewConfigError("proxy.upstream", errors.New("upstream is required to run the proxy"))
	}

	tel, err := telemetry.New(&cfg.Telemetry, logOutput, buildInfo())
	if err != nil {
		return cli.NewConfigError("telemetry", err)
	}
	logger := tel.Logger()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.OTLP.Timeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	policies, err := loadPolicies(cfg)
	if err != nil {
		return err
	}
	routes, err := policies.Routes()
	if err != nil {
		return cli.NewConfigError("policies.file", err)
	}

	rc, err := newRemote(&cfg.Warden, logger, tel.Tracer().TracerProvider())
	if err != nil {
		return cli.NewConfigError("warden", err)
	}
	defer rc.Close()

	opts := []warden.Option{warden.WithLogger(logger.With("component", "warden"))}
	if m := tel.Metrics(); m != nil {
		opts = append(opts, warden.WithMetrics(m))
	}
	backend, err := newBackend(&cfg.Storage)
	if err != nil {
		return cli.NewConfigError("storage", err)
	}
	if backend != nil {
		defer backend.Close()
		opts = append(opts, warden.WithStorage(backend))
	}

	client, err := warden.New(rc, clientConfig(cfg), opts...)
	if err != nil {
		return cli.NewConfigError("warden", err)
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if err := client.Register(ctx, policies.Declared()); err != nil {
		return cli.NewCommandError("run", err)
	}
	tel.Health().RegisterChecks(client.HealthChecks())

	enforcer := filter.New(client, routes,
		filter.WithUserHeader(cfg.Proxy.UserHeader),
		filter.WithLogger(logger.With("component", "filter")),
	)
	srvOpts := server.Options{
		Filter: enforcer,
		Tracer: tel.Tracer(),
		Logger: logger.With("component", "server"),
		Mount:  tel.Mount,
	}
	if m := tel.Metrics(); m != nil {
		srvOpts.Recorder = m
	}
	srv, err := server.New(&cfg.Proxy, srvOpts)
	if err != nil {
		return errors.Join(cli.NewConfigError("proxy", err), unregister(client, cfg.Proxy.ShutdownTimeout))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.Policies.Watch {
		watcher, err := policyfile.NewWatcher(cfg.Policies.File, cfg.Policies.Debounce, logger.With("component", "policyfile"))
		if err != nil {
			stop()
			return errors.Join(err, g.Wait(), unregister(client, cfg.Proxy.ShutdownTimeout))
		}
		g.Go(func() error {
			return watcher.Watch(gctx, func(ctx context.Context, f *policyfile.File) error {
				routes, err := f.Routes()
				if err != nil {
					return err
				}
				if err := client.Reconcile(ctx, f.Declared()); err != nil {
					return err
				}
				enforcer.SetRoutes(routes)
				return nil
			})
		})
	}
	if tel.Metrics() != nil {
		g.Go(func() error {
			reportCacheSizes(gctx, client)
			return nil
		})
	}

	logger.Info("warden proxy started",
		"listen", cfg.Proxy.ListenAddress,
		"upstream", cfg.Proxy.Upstream,
		"policies", len(policies.Policies),
	)

	runErr := g.Wait()
	if runErr != nil {
		runErr = cli.NewCommandError("run", runErr)
	}
	return errors.Join(runErr, unregister(client, cfg.Proxy.ShutdownTimeout))
}

func unregister(client *warden.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Unregister(ctx); err != nil {
		return fmt.Errorf("unregister: %w", err)
	}
	return nil
}

func reportCacheSizes(ctx context.Context, client *warden.Client) {
	ticker := time.NewTicker(cacheReportInterval)
	defer ticker.Stop()
	for {
		client.ReportCacheSizes()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
