package commands

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voiceid/internal/app"
	"github.com/MrWong99/voiceid/internal/config"
	"github.com/MrWong99/voiceid/internal/health"
	"github.com/MrWong99/voiceid/internal/observe"
	"github.com/MrWong99/voiceid/pkg/capture"
	"github.com/MrWong99/voiceid/pkg/capture/line"
)

var (
	enrollSpeaker string
	once          bool
	reloadEvery   time.Duration
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Identify speakers from recognised utterances on stdin",
	Long: `Read recognised utterances from stdin, one per line, and print feedback for
each. A line is "<transcript>\t<confidence>", a bare transcript (confidence 1),
or "!<error-code>" to report a failed recognition such as "!no-speech".

With --enroll the first accepted utterance enrols that speaker; later lines
are identified. With --config the file is watched: log level and matcher
changes apply immediately, storage and roster changes need a restart.

When server.metrics_addr is set, /metrics, /healthz and /readyz are served
on that address while listening.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&enrollSpeaker, "enroll", "", "enrol the first utterance as this speaker")
	listenCmd.Flags().BoolVar(&once, "once", false, "stop after the first handled utterance")
	listenCmd.Flags().DurationVar(&reloadEvery, "reload-interval", 5*time.Second, "how often to check the config file for changes")
}

func runListen(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		reg     *prometheus.Registry
		metrics = observe.DefaultMetrics()
	)
	if cfg.Server.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{}, reg)
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()
		if metrics, err = observe.NewMetrics(otel.GetMeterProvider()); err != nil {
			return err
		}
	}

	a, err := openApp(ctx, cfg, app.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing storage", "err", err)
		}
	}()

	var watcher *config.Watcher
	if configPath != "" {
		watcher, err = config.NewWatcher(configPath, func(old, new *config.Config) {
			applyReload(a, old, new)
		}, config.WithInterval(reloadEvery))
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return captureLoop(gctx, cmd, a)
	})

	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if cfg.Server.MetricsAddr != "" {
		srv := newMetricsServer(cfg.Server.MetricsAddr, reg, metrics, a)
		g.Go(func() error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			slog.Info("metrics listener started", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	return g.Wait()
}

// captureLoop runs one capture task at a time until the input ends, ctx is
// cancelled, or --once is satisfied.
func captureLoop(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	rec := line.New(cmd.InOrStdin())

	mode, speaker := app.ModeIdentify, ""
	if enrollSpeaker != "" {
		mode, speaker = app.ModeEnroll, enrollSpeaker
	}
	if mode == app.ModeIdentify && !a.IsReady() {
		slog.Warn("no voice profiles enrolled; every utterance will be unknown")
	}

	for {
		u, err := capture.Await(ctx, capture.Start(ctx, rec))
		if line.IsEOF(err) || ctx.Err() != nil {
			return nil
		}

		out, err := a.HandleCapture(ctx, mode, speaker, capture.Result{Utterance: u, Err: err})
		if out.Feedback != "" {
			printf(cmd, "%s\n", out.Feedback)
		}
		if err != nil {
			slog.Warn("capture not handled", "mode", mode, "err", err)
			continue
		}

		if mode == app.ModeEnroll {
			mode, speaker = app.ModeIdentify, ""
		}
		if once {
			return nil
		}
	}
}

// applyReload applies the live-reloadable parts of a config change.
func applyReload(a *app.App, old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged {
		setLogLevel(d.NewLogLevel)
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.MatcherChanged {
		a.ApplyConfig(new)
	}
	if d.RequiresRestart() {
		slog.Warn("config change requires a restart to take effect",
			"storage", d.StorageChanged,
			"speakers", d.SpeakersChanged,
		)
	}
}

// newMetricsServer builds the HTTP server for /metrics, /healthz and /readyz.
func newMetricsServer(addr string, reg *prometheus.Registry, m *observe.Metrics, a *app.App) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", observe.MetricsHandler(reg))
	health.New(
		health.StorageChecker(a.Storage()),
		health.ProfilesChecker(a.IsReady),
	).Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
