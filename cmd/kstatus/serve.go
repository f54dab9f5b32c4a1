package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"kstatus/internal/cluster"
	"kstatus/internal/config"
	"kstatus/internal/kube"
	"kstatus/internal/logging"
	"kstatus/internal/metrics"
	"kstatus/internal/server"
)

const (
	// Every request costs at most one list call, so the client-go defaults
	// (5 QPS, burst 10) would throttle a busy dashboard.
	clientQPS   = 50
	clientBurst = 100

	readHeaderTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API",
		Long: `Serve the read-only status API.

Every setting can also come from the environment (KSTATUS_<NAME>, plus PORT
and API_TOKEN) or from a YAML file passed with --config. Flags win over the
environment, which wins over the file. Without an explicit kubeconfig the
standard KUBECONFIG list is honoured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "YAML config file")
	f.Int(config.KeyPort, 3000, "HTTP listen port")
	f.String(config.KeyEnvironment, config.EnvDevelopment, "development or production")
	f.String(config.KeyKubeconfig, "", "kubeconfig path (default: in-cluster, then KUBECONFIG or ~/.kube/config)")
	f.String(config.KeyContext, "", "kubeconfig context to use instead of current-context")
	f.Duration(config.KeyUpstreamTimeout, kube.DefaultUpstreamTimeout, "timeout for each Kubernetes API call")
	f.Int64(config.KeyMaxInFlight, kube.DefaultMaxInFlight, "maximum concurrent Kubernetes API calls")
	f.Int(config.KeyStatusConcurrency, kube.DefaultStatusConcurrency, "kinds listed at once by the status endpoint")
	f.StringSlice(config.KeyAllowedOrigins, nil, "CORS origins allowed to call the API (empty disables CORS)")
	f.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	f.String(config.KeyLogFormat, "text", "log format: text or json")
	f.Bool(config.KeyMetricsEnabled, true, "serve prometheus metrics on /metrics")
	f.Duration(config.KeyShutdownTimeout, 10*time.Second, "grace period for in-flight requests on shutdown")
	f.Bool(config.KeyVerifyUpstream, false, "query the API server version before listening")

	// Only the serve settings are bound; --config is handled above.
	f.VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "config" {
			return
		}
		_ = v.BindPFlag(fl.Name, fl)
	})

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	log, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	clients, err := cluster.NewClients(cluster.Options{
		Kubeconfig: cfg.Kubeconfig,
		Context:    cfg.Context,
		QPS:        clientQPS,
		Burst:      clientBurst,
		UserAgent:  "kstatus/" + version,
	})
	if err != nil {
		return fmt.Errorf("init cluster clients: %w", err)
	}
	log.Info("cluster session ready",
		slog.String("source", clients.Source),
		slog.String("host", clients.RestConfig.Host),
	)

	if cfg.VerifyUpstream {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.UpstreamTimeout)
		ver, err := clients.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("verify upstream: %w", err)
		}
		log.Info("api server reachable", slog.String("version", ver))

		if err := warnMissingAccess(ctx, log, clients, cfg.UpstreamTimeout); err != nil {
			return fmt.Errorf("verify upstream: %w", err)
		}
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	adapter := kube.NewAdapter(clients, kube.AdapterOptions{
		Timeout:     cfg.UpstreamTimeout,
		MaxInFlight: cfg.MaxInFlight,
		Metrics:     m,
		Logger:      log,
	})
	pipeline := kube.NewPipeline(adapter,
		kube.WithStatusConcurrency(cfg.StatusConcurrency),
		kube.WithLogger(log),
	)
	srv := server.New(pipeline, server.Options{
		Token:          cfg.APIToken,
		Logger:         log,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			slog.Int("port", cfg.Port),
			slog.String("environment", cfg.Environment),
			slog.Bool("production", cfg.IsProduction()),
			slog.String("api_token", logging.SanitizeToken(cfg.APIToken)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// warnMissingAccess logs every kind the service account cannot read. Missing
// access is not fatal: those routes answer 500 until RBAC is fixed.
func warnMissingAccess(ctx context.Context, log *slog.Logger, clients *cluster.Clients, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	kinds := []kube.Kind{
		kube.KindPods, kube.KindDeployments, kube.KindStatefulSets, kube.KindJobs,
		kube.KindNamespaces, kube.KindEvents, kube.KindLogs,
	}
	reports, err := kube.CheckListAccess(ctx, clients.Clientset, "", kinds)
	if err != nil {
		return err
	}
	for _, r := range reports {
		if !r.Allowed {
			log.Warn("missing cluster access",
				logging.ResourceType(string(r.Kind)),
				slog.String("reason", r.Reason),
			)
		}
	}
	return nil
}
