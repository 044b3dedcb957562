// Package commands implements the ivtree subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/ivtree/pkg/catalog"
	"github.com/Sumatoshi-tech/ivtree/pkg/config"
	"github.com/Sumatoshi-tech/ivtree/pkg/dataset"
	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
	"github.com/Sumatoshi-tech/ivtree/pkg/version"
)

// ErrNoDataset is returned when a command needs --data and none was given.
var ErrNoDataset = errors.New("dataset is required (use --data)")

// GlobalOptions are the persistent flags of the root command.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool
	LogJSON    bool
}

// app is the wiring shared by every command: configuration, telemetry and
// a catalog.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	catalog   *catalog.Catalog
	logger    *slog.Logger
}

// observabilityConfig maps file and flag settings onto the telemetry setup.
func observabilityConfig(cfg *config.Config, opts *GlobalOptions, mode observability.AppMode) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.LogLevel = observability.ParseLogLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.Format == "json" || opts.LogJSON
	obsCfg.Prometheus = mode == observability.ModeServe

	if opts.Verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	return obsCfg
}

func newApp(opts *GlobalOptions, mode observability.AppMode) (*app, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	providers, err := observability.Init(observabilityConfig(cfg, opts, mode))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewIndexMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	cat := catalog.New(cfg.Index,
		catalog.WithLogger(providers.Logger),
		catalog.WithTracer(providers.Tracer),
		catalog.WithMetrics(metrics),
	)

	return &app{cfg: cfg, providers: providers, catalog: cat, logger: providers.Logger}, nil
}

func (a *app) load(ctx context.Context, path string) error {
	if path == "" {
		return ErrNoDataset
	}

	records, err := dataset.Load(path)
	if err != nil {
		return err
	}

	_, err = a.catalog.LoadRecords(ctx, records)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	a.logger.DebugContext(ctx, "dataset loaded", "path", path, "records", len(records))

	return nil
}

func (a *app) close(ctx context.Context) error {
	return a.providers.Shutdown(ctx)
}

// withApp runs fn against a freshly loaded app and always shuts telemetry down.
func withApp(
	ctx context.Context, opts *GlobalOptions, mode observability.AppMode, dataPath string,
	fn func(*app) error,
) (err error) {
	a, err := newApp(opts, mode)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, a.close(ctx))
	}()

	err = a.load(ctx, dataPath)
	if err != nil {
		return err
	}

	return fn(a)
}
