package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/roach88/paperfig/internal/archcritic"
	"github.com/roach88/paperfig/internal/audit"
	"github.com/roach88/paperfig/internal/config"
	"github.com/roach88/paperfig/internal/critic"
	"github.com/roach88/paperfig/internal/docsgen"
	"github.com/roach88/paperfig/internal/engine"
	"github.com/roach88/paperfig/internal/exporter"
	"github.com/roach88/paperfig/internal/generator"
	"github.com/roach88/paperfig/internal/paper"
	"github.com/roach88/paperfig/internal/planner"
	"github.com/roach88/paperfig/internal/store"
	"github.com/roach88/paperfig/internal/telemetry"
	"github.com/roach88/paperfig/internal/templates"
)

// IndexFile is the run index database name under the run root.
const IndexFile = "index.db"

// app is one fully wired orchestrator plus the resources it holds open.
type app struct {
	settings  *config.Settings
	orch      *engine.Orchestrator
	index     *store.Store
	templates templates.Source
	providers *telemetry.Providers
	logger    *slog.Logger
}

// appTuning adjusts settings before the engine config is derived from them,
// and the engine config afterwards. Either may be nil.
type appTuning struct {
	settings func(*config.Settings)
	engine   func(*engine.Config)
}

// loadSettings reads the config file and applies global flag overrides.
func loadSettings(opts *RootOptions) (*config.Settings, error) {
	s, _, err := loadFingerprinted(opts)
	return s, err
}

// loadFingerprinted is loadSettings plus the fingerprint of the loaded
// file and environment layer. Flags are applied after fingerprinting, so
// config_hash only changes when paperfig.yaml or PAPERFIG_* change; the
// per-run parameters a flag can set are recorded in run.json instead.
func loadFingerprinted(opts *RootOptions) (*config.Settings, string, error) {
	s, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	hash, err := s.Fingerprint()
	if err != nil {
		return nil, "", err
	}
	if opts.RunRoot != "" {
		s.Run.Root = opts.RunRoot
	}
	return s, hash, nil
}

func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// newApp wires every default collaborator into an orchestrator. The
// caller must Close the app.
func newApp(cmd *cobra.Command, opts *RootOptions, tune appTuning) (*app, error) {
	logger := newLogger(cmd, opts.Verbose)

	settings, hash, err := loadFingerprinted(opts)
	if err != nil {
		return nil, err
	}
	if tune.settings != nil {
		tune.settings(settings)
	}
	cfg, err := settings.EngineConfig()
	if err != nil {
		return nil, err
	}
	cfg.ConfigHash = hash
	cfg.StyleRefs, err = generator.LoadStyleRefs(settings.Renderer.StyleRef)
	if err != nil {
		return nil, engine.NewConfigurationError("renderer.style_ref", err)
	}
	if tune.engine != nil {
		tune.engine(&cfg)
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	renderer, err := newRenderer(settings.Renderer)
	if err != nil {
		return nil, err
	}

	a := &app{
		settings:  settings,
		templates: templates.NewSource(settings.Templates.TemplateDir),
		logger:    logger,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.providers, err = telemetry.Init(ctx, cmd.ErrOrStderr(), "paperfig", Version)
	if err != nil {
		return nil, err
	}

	deps := engine.Deps{
		Parser:     paper.NewParser(),
		Planner:    planner.New(a.templates, planner.WithLogger(logger)),
		Generator:  generator.New(renderer),
		Critic:     critic.New(),
		ArchCritic: archcritic.New(repoRoot, a.templates),
		Auditor:    audit.New(),
		Drift:      docsgen.NewChecker(repoRoot, docsgen.WithCommands(commandCatalog(cmd.Root()))),
		Exporter:   exporter.New(),
	}

	if !settings.Index.Disabled {
		a.index, err = openIndex(settings.Index.Path, cfg.RunRoot)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Index = a.index
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithTracerProvider(a.providers.Tracer),
		engine.WithMeterProvider(a.providers.Meter),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	a.orch, err = engine.New(cfg, deps, engineOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("orchestrator ready",
		"run_root", cfg.RunRoot,
		"config_hash", cfg.ConfigHash,
		"renderer", fmt.Sprintf("%T", renderer),
		"index", a.index != nil)
	return a, nil
}

// Close releases the run index and flushes telemetry.
func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Error("error closing run index", "error", err)
		}
	}
	if a.providers != nil {
		if err := a.providers.Shutdown(context.Background()); err != nil {
			a.logger.Error("error flushing telemetry", "error", err)
		}
	}
}

// newRenderer returns the HTTP renderer when an endpoint is configured and
// the deterministic mock otherwise.
func newRenderer(rs config.RendererSettings) (generator.Renderer, error) {
	if rs.Endpoint == "" {
		return generator.MockRenderer{}, nil
	}
	timeout, err := cast.ToDurationE(rs.Timeout)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("renderer.timeout %q", rs.Timeout), err)
	}
	opts := []generator.HTTPOption{generator.WithHTTPClient(&http.Client{Timeout: timeout})}
	if rs.APIKey != "" {
		opts = append(opts, generator.WithAPIKey(rs.APIKey))
	}
	return generator.NewHTTPRenderer(rs.Endpoint, opts...), nil
}

// openIndex opens the run index at path, or <runRoot>/index.db.
func openIndex(path, runRoot string) (*store.Store, error) {
	if path == "" {
		path = filepath.Join(runRoot, IndexFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run index directory: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run index %s: %w", path, err)
	}
	return st, nil
}
