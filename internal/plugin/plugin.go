// Package plugin defines the build lifecycle hooks and the registry of
// compiled-in plugins.
//
// The orchestrator calls the four hooks unconditionally and does not inspect
// plugin internals. Hook errors abort the whole build: plugin and builder
// state are unverified after a failed hook.
package plugin

import (
	"context"
	"log/slog"
)

// Plugin is the build lifecycle contract.
type Plugin interface {
	// Name identifies the plugin; it must match the project file entry.
	Name() string

	// Setup runs once per build, before anything is scanned. Plugins
	// register extra tracked directories here.
	Setup(ctx *Context) error

	// CompilationStart runs before rendering begins.
	CompilationStart(ctx *Context) error

	// CompilationEnd runs after rendering, before cache persistence.
	CompilationEnd(ctx *Context) error

	// Cleanup runs once at teardown.
	Cleanup(ctx *Context) error
}

// DirTracker is the slice of the snapshot registry plugins may touch:
// registering extra named roots before the first scan of a build.
type DirTracker interface {
	Register(name, dir string) error
}

// Context gives plugins access to the build without coupling them to the
// orchestrator's internals.
type Context struct {
	// Context is the standard Go context of the build.
	Context context.Context

	// Logger is a structured logger scoped to the plugin.
	Logger *slog.Logger

	// Options is the plugin's options block from the project file.
	Options map[string]any

	// BaseDir is the project directory.
	BaseDir string

	// OutputDir is where the site is generated.
	OutputDir string

	// Tracker registers extra tracked directories. Only valid during Setup;
	// later registrations fail.
	Tracker DirTracker
}

// TrackDir registers an extra named root to diff across builds.
func (c *Context) TrackDir(name, dir string) error {
	return c.Tracker.Register(name, dir)
}
