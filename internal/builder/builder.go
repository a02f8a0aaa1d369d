// Package builder sequences a full build pass: plugin setup, scanning,
// cache load or reset, invalidation planning, per-document rendering,
// breadcrumb postprocessing, asset sync, persistence and plugin teardown.
//
// A build is single-threaded and non-reentrant. The orchestrator owns the
// output and cache directories for the duration of a pass; source, template
// and asset directories are read-only inputs.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/depgraph"
	"git.home.luguber.info/inful/sitebuilder/internal/doctree"
	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markup"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/plan"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/snapshot"
	"git.home.luguber.info/inful/sitebuilder/internal/tmpl"
	"git.home.luguber.info/inful/sitebuilder/internal/util/sets"
)

// Options tunes a build pass.
type Options struct {
	// Clean wipes the output directory and discards all cached state before
	// building, so every document renders as on a first run.
	Clean bool

	// NoCache skips loading cached state, so every document re-renders.
	// Unless NoPersist is also set, the fresh state is persisted afterwards,
	// repairing a suspect cache in one pass.
	NoCache bool

	// NoPersist skips writing cache state after the build.
	NoPersist bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Recorder defaults to metrics.NoopRecorder.
	Recorder metrics.Recorder

	// Plugins run the four lifecycle hooks, in the given order.
	Plugins []plugin.Plugin
}

// Result summarizes a completed (or partially failed) build pass.
type Result struct {
	BuildID  string
	Rendered int
	Removed  int
	Failed   int
	Duration time.Duration
}

// Builder runs build passes for one project. It may be reused across passes
// (the preview server does), but never concurrently.
type Builder struct {
	cfg       *config.Config
	log       *slog.Logger
	rec       metrics.Recorder
	plugins   []plugin.Plugin
	clean     bool
	noCache   bool
	noPersist bool

	paths  Paths
	markup *markup.Renderer

	// Per-pass state, reset by Build.
	registry *snapshot.Registry
	graph    *depgraph.Graph
	tree     *doctree.Tree
	engine   *tmpl.Engine
	plan     *plan.Plan
	outputs  map[string]string
	touched  sets.Set[string]
	rendered int
	removed  int
	failed   int
}

// New creates a builder for the given project configuration.
func New(cfg *config.Config, opts Options) *Builder {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Builder{
		cfg:       cfg,
		log:       log,
		rec:       rec,
		plugins:   opts.Plugins,
		clean:     opts.Clean,
		noCache:   opts.NoCache,
		noPersist: opts.NoPersist,
		paths:     Paths{CacheDir: cfg.CacheDir(), OutputDir: cfg.OutputDir()},
		markup:    markup.NewRenderer(),
	}
}

// TrackedDirs returns the directories the last pass tracked, for the file
// watcher. Before the first pass it returns the three configured roots.
func (b *Builder) TrackedDirs() []string {
	if b.registry != nil {
		return b.registry.TrackedDirs()
	}
	return []string{b.cfg.SourceDir(), b.cfg.TemplatesDir(), b.cfg.AssetsDir()}
}

type stageFn func(ctx context.Context, log *slog.Logger) error

type stageDef struct {
	name string
	fn   stageFn
}

// runStages executes stages in order, recording timing and stopping on the
// first error.
func (b *Builder) runStages(ctx context.Context, log *slog.Logger, stages []stageDef) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("build canceled before stage %s: %w", st.name, err)
		}

		stlog := log.With(logfields.Stage(st.name))
		t0 := time.Now()
		err := st.fn(ctx, stlog)
		dur := time.Since(t0)

		b.rec.ObserveStageDuration(st.name, dur)
		if err != nil {
			stlog.Error("Stage failed", logfields.DurationMS(float64(dur.Milliseconds())), logfields.Error(err))
			return fmt.Errorf("stage %s: %w", st.name, err)
		}
		stlog.Debug("Stage complete", logfields.DurationMS(float64(dur.Milliseconds())))
	}
	return nil
}

// Build runs one full pass. The returned Result is valid even when err is
// non-nil, so callers can report partial progress.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	buildID := uuid.NewString()
	log := b.log.With(logfields.BuildID(buildID))
	start := time.Now()

	b.resetPassState()

	stages := []stageDef{
		{"plugins-setup", b.stagePluginHook(plugin.Plugin.Setup)},
		{"scan", b.stageScan},
		{"cache", b.stageCache},
		{"plan", b.stagePlan},
		{"plugins-compilation-start", b.stagePluginHook(plugin.Plugin.CompilationStart)},
		{"render", b.stageRender},
		{"postprocess", b.stagePostprocess},
		{"assets", b.stageAssets},
		{"plugins-compilation-end", b.stagePluginHook(plugin.Plugin.CompilationEnd)},
		{"persist", b.stagePersist},
	}

	err := b.runStages(ctx, log, stages)

	// Cleanup runs even when an earlier stage aborted; the plugins were set
	// up and deserve their teardown.
	cleanup := []stageDef{{"plugins-cleanup", b.stagePluginHook(plugin.Plugin.Cleanup)}}
	if cerr := b.runStages(ctx, log, cleanup); cerr != nil && err == nil {
		err = cerr
	}

	if err == nil && b.failed > 0 {
		err = fnderr.New(fnderr.CategoryRender, fmt.Sprintf("%d of %d documents failed to render", b.failed, b.failed+b.rendered)).Build()
	}

	dur := time.Since(start)
	b.rec.ObserveBuildDuration(dur)
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	b.rec.IncBuildOutcome(outcome)

	res := &Result{
		BuildID:  buildID,
		Rendered: b.rendered,
		Removed:  b.removed,
		Failed:   b.failed,
		Duration: dur,
	}
	log.Info("Build finished",
		logfields.Rendered(res.Rendered),
		logfields.Removed(res.Removed),
		logfields.Failed(res.Failed),
		logfields.DurationMS(float64(dur.Milliseconds())))
	return res, err
}

func (b *Builder) resetPassState() {
	opts := snapshot.ScanOptions{
		IgnoreHidden:   b.cfg.Ignore.HiddenEnabled(),
		IgnorePatterns: b.cfg.Ignore.Patterns,
	}
	b.registry = snapshot.NewRegistry(b.paths.CacheDir,
		b.cfg.SourceDir(), b.cfg.TemplatesDir(), b.cfg.AssetsDir(), opts)
	b.graph = depgraph.New()
	b.tree = doctree.New()
	b.engine = nil
	b.plan = nil
	b.outputs = make(map[string]string)
	b.touched = sets.New[string]()
	b.rendered, b.removed, b.failed = 0, 0, 0
}

// stagePluginHook adapts one lifecycle hook into a stage that runs it for
// every active plugin. Hook errors are fatal: plugin and builder state are
// unverified after a failed hook.
func (b *Builder) stagePluginHook(hook func(plugin.Plugin, *plugin.Context) error) stageFn {
	return func(ctx context.Context, log *slog.Logger) error {
		for _, p := range b.plugins {
			pctx := &plugin.Context{
				Context:   ctx,
				Logger:    log.With(logfields.Plugin(p.Name())),
				Options:   b.cfg.PluginOptions(p.Name()),
				BaseDir:   b.cfg.BaseDir,
				OutputDir: b.paths.OutputDir,
				Tracker:   b.registry,
			}
			if err := hook(p, pctx); err != nil {
				return fnderr.Wrap(err, fnderr.CategoryPlugin, fmt.Sprintf("plugin %s hook failed", p.Name())).
					Fatal().Build()
			}
		}
		return nil
	}
}

func (b *Builder) stageScan(_ context.Context, _ *slog.Logger) error {
	return b.registry.ScanAll()
}

// stageCache either loads the prior pass's state or, for a clean build,
// wipes the output directory and discards every cache artifact so the pass
// behaves like a first run.
func (b *Builder) stageCache(_ context.Context, log *slog.Logger) error {
	if b.clean {
		if err := os.RemoveAll(b.paths.OutputDir); err != nil {
			return fnderr.Wrap(err, fnderr.CategoryFileSystem, "clearing output directory").Fatal().Build()
		}
		if err := os.RemoveAll(b.paths.CacheDir); err != nil {
			return fnderr.Wrap(err, fnderr.CategoryFileSystem, "clearing cache directory").Fatal().Build()
		}
		log.Info("Clean build, discarded cached state")
		return nil
	}
	if b.noCache {
		log.Info("Cache load skipped, full re-render")
		return nil
	}
	b.registry.LoadAll()
	b.graph = loadGraph(b.paths.Relationships(), log)
	b.tree = loadTree(b.paths.Doctree(), log)
	return nil
}

func (b *Builder) stagePlan(_ context.Context, log *slog.Logger) error {
	sourceDiff, err := b.registry.Diff(snapshot.RootSource)
	if err != nil {
		return err
	}
	templateDiff, err := b.registry.Diff(snapshot.RootTemplates)
	if err != nil {
		return err
	}
	b.plan = plan.Build(sourceDiff, templateDiff, b.graph)
	log.Info("Invalidation planned",
		logfields.Rendered(len(b.plan.Render)),
		logfields.Removed(len(b.plan.Remove)),
		slog.Int("forced", b.plan.Forced.Len()))
	return nil
}

func (b *Builder) stageRender(_ context.Context, log *slog.Logger) error {
	if b.plan.Empty() {
		log.Info("Nothing to render")
		return nil
	}

	engine, err := tmpl.NewEngine(b.cfg.TemplatesDir())
	if err != nil {
		return err
	}
	b.engine = engine

	for _, doc := range b.plan.Render {
		dlog := log.With(logfields.Document(doc))
		if err := b.renderDocument(doc); err != nil {
			dlog.Error("Document failed", logfields.Error(err))
			b.failed++
			continue
		}
		b.rendered++
		dlog.Debug("Document rendered", logfields.Action("render"))
	}
	b.rec.IncDocuments(metrics.ActionRender, b.rendered)
	b.rec.IncDocumentFailures(b.failed)

	for _, doc := range b.plan.Remove {
		dlog := log.With(logfields.Document(doc))
		b.removeDocument(doc, dlog)
		b.removed++
		dlog.Debug("Document removed", logfields.Action("remove"))
	}
	b.rec.IncDocuments(metrics.ActionRemove, b.removed)
	return nil
}

// stagePersist writes snapshots, graph and tree, each with write-then-rename.
// When any document failed the pass persists nothing: the stale snapshots
// keep the failed documents classified as pending, so the next pass retries
// them instead of silently marking them current.
func (b *Builder) stagePersist(_ context.Context, log *slog.Logger) error {
	if b.noPersist {
		log.Debug("Cache persistence disabled")
		return nil
	}
	if b.failed > 0 {
		log.Warn("Skipping cache persistence, failed documents stay pending", logfields.Failed(b.failed))
		return nil
	}
	if err := b.registry.DumpAll(); err != nil {
		return fnderr.Wrap(err, fnderr.CategoryCache, "persisting snapshots").Fatal().Build()
	}
	if err := persistJSON(b.paths.Relationships(), b.graph); err != nil {
		return fnderr.Wrap(err, fnderr.CategoryCache, "persisting dependency graph").Fatal().Build()
	}
	if err := persistJSON(b.paths.Doctree(), b.tree); err != nil {
		return fnderr.Wrap(err, fnderr.CategoryCache, "persisting site tree").Fatal().Build()
	}
	return nil
}
