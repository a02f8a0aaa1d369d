package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// Global carries state shared across subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command grammar.
type CLI struct {
	Config  string           `short:"c" help:"Project file path" default:"site.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" help:"Build the site, rendering only what changed"`
	Serve ServeCmd `cmd:"" help:"Serve the site locally and rebuild on change"`
	Init  InitCmd  `cmd:"" help:"Scaffold a new site project"`
	Tree  TreeCmd  `cmd:"" help:"Print the site tree from the build cache"`
}

// AfterApply runs after flag parsing; sets up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig resolves the project file path and loads it. A bare directory
// argument looks for the default file name inside it.
func loadConfig(path string) (*config.Config, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, config.DefaultFileName)
	}
	return config.Load(path)
}
