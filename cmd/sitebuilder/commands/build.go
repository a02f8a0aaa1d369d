package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/builder"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Clean       bool `help:"Wipe the output directory and cached state, then build everything" xor:"mode"`
	Dirty       bool `help:"Incremental build reusing cached state (the default)" xor:"mode"`
	Cache       bool `default:"true" negatable:"" help:"Load and persist the build cache (--no-cache disables both)"`
	IgnoreCache bool `name:"ignore-cache" help:"Ignore cached state but refresh it after the build"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	plugins, err := selectPlugins(cfg)
	if err != nil {
		return err
	}

	eng := builder.New(cfg, builder.Options{
		Clean:     b.Clean,
		NoCache:   !b.Cache || b.IgnoreCache,
		NoPersist: !b.Cache,
		Plugins:   plugins,
	})
	res, err := eng.Build(context.Background())
	if err != nil {
		return err
	}
	slog.Info("Site built",
		logfields.Rendered(res.Rendered),
		logfields.Removed(res.Removed),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return nil
}

// selectPlugins resolves the project's plugin entries against the compiled-in
// registry. None are bundled today; forks of the binary register theirs here.
func selectPlugins(cfg *config.Config) ([]plugin.Plugin, error) {
	reg := plugin.NewRegistry()
	names := make([]string, 0, len(cfg.Plugins))
	for _, p := range cfg.Plugins {
		names = append(names, p.Name)
	}
	return reg.Select(names)
}
