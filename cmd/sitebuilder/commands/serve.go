package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/builder"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port           int           `short:"p" help:"Preview port (overrides project file)"`
	RescanInterval time.Duration `name:"rescan-interval" help:"Periodic full rescan as a fallback for missed file events (overrides project file)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	if s.Port != 0 {
		cfg.Serve.Port = s.Port
	}
	if s.RescanInterval != 0 {
		cfg.Serve.RescanInterval = s.RescanInterval
	}
	plugins, err := selectPlugins(cfg)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	eng := builder.New(cfg, builder.Options{
		Plugins:  plugins,
		Recorder: metrics.NewPrometheusRecorder(promReg),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.New(cfg, server.FromBuilder(eng), promReg, nil).Run(ctx)
}
