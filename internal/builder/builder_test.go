package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// base is well in the past and second-aligned, so tests control every mtime
// the snapshot scanner sees.
var base = time.Now().Add(-time.Hour).Truncate(time.Second)

func writeAt(t *testing.T, root, rel, content string, mt time.Time) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(p, mt, mt))
	return p
}

func newProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Title:   "Test Site",
		BaseDir: dir,
	}
	cfg.Dirs = config.DirsConfig{
		Source:    "content",
		Templates: "templates",
		Assets:    "assets",
		Output:    "_site",
		Cache:     ".sitebuilder",
	}
	for _, d := range []string{cfg.SourceDir(), cfg.TemplatesDir(), cfg.AssetsDir()} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	writeAt(t, cfg.TemplatesDir(), "page.html",
		"<title>{{.Site}}: {{.Title}}</title>\n{{.Content}}", base)
	return cfg
}

func readOutput(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestFirstBuildRendersEverything(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha\n\nhello", base)
	writeAt(t, cfg.SourceDir(), "blog/post1.md", "# Post One\n\nbody", base)
	writeAt(t, cfg.AssetsDir(), "style.css", "body{}", base)

	b := New(cfg, Options{})
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rendered)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, 0, res.Failed)

	assert.Contains(t, readOutput(t, cfg, "a.html"), "Alpha")
	assert.Contains(t, readOutput(t, cfg, "blog/post1.html"), "Post One")
	assert.Equal(t, "body{}", readOutput(t, cfg, "assets/style.css"))
}

func TestSecondBuildWithoutChangesDoesNothing(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rendered)
	assert.Equal(t, 0, res.Removed)
}

func TestModifiedSourceRerenders(t *testing.T) {
	cfg := newProject(t)
	p := writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)
	writeAt(t, cfg.SourceDir(), "b.md", "# Beta", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("# Alpha Two"), 0o644))
	require.NoError(t, os.Chtimes(p, base.Add(5*time.Second), base.Add(5*time.Second)))

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rendered)
	assert.Contains(t, readOutput(t, cfg, "a.html"), "Alpha Two")
}

func TestModifiedTemplateForcesDependents(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)
	writeAt(t, cfg.SourceDir(), "b.md", "# Beta", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	tpl := filepath.Join(cfg.TemplatesDir(), "page.html")
	require.NoError(t, os.WriteFile(tpl, []byte("<h2>v2</h2>\n{{.Content}}"), 0o644))
	require.NoError(t, os.Chtimes(tpl, base.Add(5*time.Second), base.Add(5*time.Second)))

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rendered, "both documents depend on page.html")
	assert.Contains(t, readOutput(t, cfg, "a.html"), "v2")
	assert.Contains(t, readOutput(t, cfg, "b.html"), "v2")
}

func TestDeletedSourceRemovesOutput(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)
	p := writeAt(t, cfg.SourceDir(), "blog/post1.md", "# Post One", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(p))
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	_, statErr := os.Stat(filepath.Join(cfg.OutputDir(), "blog", "post1.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeletedAssetRemovedFromOutput(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)
	p := writeAt(t, cfg.AssetsDir(), "old.css", "x{}", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(p))
	_, err = b.Build(context.Background())
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(cfg.OutputDir(), "assets", "old.css"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMissingTemplateFailsOnlyThatDocument(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "ok.md", "# Fine", base)
	writeAt(t, cfg.SourceDir(), "broken.md", "---\ntemplate: nope.html\n---\n# Broken", base)

	b := New(cfg, Options{})
	res, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, fnderr.IsCategory(err, fnderr.CategoryRender))
	assert.Equal(t, 1, res.Rendered)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, readOutput(t, cfg, "ok.html"), "Fine")
}

func TestCleanBuildDiscardsStateAndOutput(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	writeAt(t, cfg.OutputDir(), "stray.html", "leftover", base)

	cb := New(cfg, Options{Clean: true})
	res, err := cb.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rendered, "clean build renders everything again")

	_, statErr := os.Stat(filepath.Join(cfg.OutputDir(), "stray.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestNonMarkdownSourceCopiedVerbatim(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "robots.txt", "User-agent: *", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *", readOutput(t, cfg, "robots.txt"))
}

func TestBreadcrumbMarkersResolved(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.TemplatesDir(), "page.html",
		"<nav>{{breadcrumbs}}</nav>\n{{.Content}}", base)
	writeAt(t, cfg.SourceDir(), "index.md", "# Welcome", base)
	writeAt(t, cfg.SourceDir(), "blog/post1.md", "# Post One", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	page := readOutput(t, cfg, "blog/post1.html")
	assert.NotContains(t, page, "SITEBUILDER", "marker must be consumed")
	assert.Contains(t, page, `<a href="..">Welcome</a>`)
	assert.Contains(t, page, "<span>Blog</span>", "placeholder ancestor is not linkable")
	assert.Contains(t, page, "<span>Post One</span>", "leaf never links to itself")
}

func TestFrontmatterTitleAndMeta(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.TemplatesDir(), "page.html",
		"<title>{{.Title}}</title><p>{{.Meta.author}}</p>", base)
	writeAt(t, cfg.SourceDir(), "a.md", "---\ntitle: Override\nauthor: ada\n---\n# Ignored", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	page := readOutput(t, cfg, "a.html")
	assert.Contains(t, page, "<title>Override</title>")
	assert.Contains(t, page, "<p>ada</p>")
}

// orderPlugin records hook invocations and optionally tracks an extra root.
type orderPlugin struct {
	name     string
	calls    []string
	extraDir string
	failOn   string
}

func (p *orderPlugin) Name() string { return p.name }

func (p *orderPlugin) hook(name string, ctx *plugin.Context) error {
	p.calls = append(p.calls, name)
	if p.failOn == name {
		return fnderr.PluginError("boom").Build()
	}
	if name == "setup" && p.extraDir != "" {
		return ctx.TrackDir("extra", p.extraDir)
	}
	return nil
}

func (p *orderPlugin) Setup(ctx *plugin.Context) error            { return p.hook("setup", ctx) }
func (p *orderPlugin) CompilationStart(ctx *plugin.Context) error { return p.hook("start", ctx) }
func (p *orderPlugin) CompilationEnd(ctx *plugin.Context) error   { return p.hook("end", ctx) }
func (p *orderPlugin) Cleanup(ctx *plugin.Context) error          { return p.hook("cleanup", ctx) }

func TestPluginHooksRunInLifecycleOrder(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)

	extra := t.TempDir()
	writeAt(t, extra, "data.json", "{}", base)

	pl := &orderPlugin{name: "probe", extraDir: extra}
	b := New(cfg, Options{Plugins: []plugin.Plugin{pl}})
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"setup", "start", "end", "cleanup"}, pl.calls)

	// The extra root got its own snapshot cache.
	_, statErr := os.Stat(filepath.Join(cfg.CacheDir(), "extra.snap"))
	assert.NoError(t, statErr)
}

func TestPluginHookFailureAbortsBuild(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)

	pl := &orderPlugin{name: "probe", failOn: "start"}
	b := New(cfg, Options{Plugins: []plugin.Plugin{pl}})
	res, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, fnderr.IsCategory(err, fnderr.CategoryPlugin))
	assert.Equal(t, 0, res.Rendered, "render stage never ran")
	assert.Contains(t, pl.calls, "cleanup", "cleanup still runs after an abort")
}

func TestCorruptCacheDegradesToFullRebuild(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	// Corrupt every cache artifact.
	entries, err := os.ReadDir(cfg.CacheDir())
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.CacheDir(), e.Name()), []byte("not valid"), 0o644))
	}

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rendered, "corrupt snapshots make everything look added")
}

func TestOutputPathMapping(t *testing.T) {
	assert.Equal(t, "a.html", outputPath("a.md"))
	assert.Equal(t, "blog/post.html", outputPath("blog/post.markdown"))
	assert.Equal(t, "img/logo.svg", outputPath("img/logo.svg"))
}

func TestRootPrefixDepth(t *testing.T) {
	assert.Equal(t, ".", rootPrefix("a.html"))
	assert.Equal(t, "..", rootPrefix("blog/a.html"))
	assert.Equal(t, "../..", rootPrefix("blog/2024/a.html"))
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, "getting-started", fallbackTitle("docs/getting-started.md"))
	assert.Equal(t, "docs", fallbackTitle("docs/index.md"))
	assert.Equal(t, "", fallbackTitle("index.md"))
}

func TestNoCacheRerendersButPersists(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)

	b := New(cfg, Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	nb := New(cfg, Options{NoCache: true})
	res, err := nb.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rendered)

	// The state it persisted is intact for the next incremental pass.
	b2 := New(cfg, Options{})
	res, err = b2.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rendered)

	if !strings.Contains(readOutput(t, cfg, "a.html"), "Alpha") {
		t.Fatal("output missing after no-cache rebuild")
	}
}

func TestNoPersistLeavesCacheUntouched(t *testing.T) {
	cfg := newProject(t)
	writeAt(t, cfg.SourceDir(), "a.md", "# Alpha", base)

	b := New(cfg, Options{NoCache: true, NoPersist: true})
	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rendered)

	// Nothing was cached, so the next pass starts from scratch.
	b2 := New(cfg, Options{})
	res, err = b2.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rendered)
}
