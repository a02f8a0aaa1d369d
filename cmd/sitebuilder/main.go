package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/cmd/sitebuilder/commands"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("sitebuilder"),
		kong.Description("Incremental static site generator: Markdown in, HTML out, only what changed."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	err := ctx.Run(&commands.Global{}, &cli)
	ctx.FatalIfErrorf(err)
}
