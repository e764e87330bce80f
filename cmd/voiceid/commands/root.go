// Package commands implements the voiceid CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voiceid/internal/app"
	"github.com/MrWong99/voiceid/internal/config"
	"github.com/MrWong99/voiceid/internal/observe"
	"github.com/MrWong99/voiceid/pkg/profilestore"
	badgerstore "github.com/MrWong99/voiceid/pkg/profilestore/badger"
	filestore "github.com/MrWong99/voiceid/pkg/profilestore/file"
	pgstore "github.com/MrWong99/voiceid/pkg/profilestore/postgres"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// logLevel is shared by every logger so that config reloads can change
	// verbosity at runtime.
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "voiceid",
	Short: "Enrol children's voices and identify who is speaking",
	Long: `voiceid - "who is speaking" identification for the kids' learning app.

Each child enrols once by saying a short phrase (for example "مرحبا"). Later
utterances are matched against the enrolled phrases; the best match wins if
its score exceeds the decision threshold.

Profiles are stored in the backend chosen in the config file (file, badger,
postgres or memory). Without --config the defaults are used and profiles are
kept in ./data.

Examples:
  voiceid enroll sara "مرحبا" --confidence 0.9
  voiceid identify "مرحبا" --confidence 0.85 --explain
  voiceid list
  printf 'مرحبا\t0.9\n' | voiceid listen`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		slog.SetDefault(newLogger(cmd.ErrOrStderr()))
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug) logging")

	rootCmd.AddCommand(enrollCmd, identifyCmd, listCmd, statsCmd, forgetCmd, resetCmd, listenCmd)
}

// newLogger returns a text logger on w whose level follows logLevel.
func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// setLogLevel applies a configured level; --verbose always wins.
func setLogLevel(level config.LogLevel) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
		return
	}
	switch level {
	case config.LogDebug:
		logLevel.Set(slog.LevelDebug)
	case config.LogWarn:
		logLevel.Set(slog.LevelWarn)
	case config.LogError:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}

// loadConfig reads --config, or returns the defaults when it is unset.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath == "" {
		cfg = config.Default()
	} else {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	setLogLevel(cfg.Server.LogLevel)
	return cfg, nil
}

// registerBuiltinStores wires every storage backend into reg.
func registerBuiltinStores(reg *config.Registry) {
	reg.RegisterStore(config.BackendMemory, func(context.Context, config.StorageConfig) (profilestore.Store, error) {
		return profilestore.NewMemory(), nil
	})
	reg.RegisterStore(config.BackendFile, func(_ context.Context, sc config.StorageConfig) (profilestore.Store, error) {
		return filestore.New(sc.Path)
	})
	reg.RegisterStore(config.BackendBadger, func(_ context.Context, sc config.StorageConfig) (profilestore.Store, error) {
		return badgerstore.New(badgerstore.Options{Dir: sc.Path})
	})
	reg.RegisterStore(config.BackendPostgres, func(ctx context.Context, sc config.StorageConfig) (profilestore.Store, error) {
		return pgstore.New(ctx, sc.PostgresDSN)
	})
}

// openApp opens the configured storage and builds the service on it.
func openApp(ctx context.Context, cfg *config.Config, opts ...app.Option) (*app.App, error) {
	reg := config.NewRegistry()
	registerBuiltinStores(reg)

	store, err := reg.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	label := string(cfg.Storage.Backend)
	if cfg.Storage.Fallback != "" {
		label += "+" + string(cfg.Storage.Fallback)
	}

	a, err := app.New(ctx, cfg, append([]app.Option{app.WithStorage(store, label)}, opts...)...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// withApp loads the config, opens the app, runs fn, and closes the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, app.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing storage", "err", err)
		}
	}()
	return fn(ctx, a)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
