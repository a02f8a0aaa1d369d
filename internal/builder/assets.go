package builder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/snapshot"
	"git.home.luguber.info/inful/sitebuilder/internal/util/atomicfile"
)

// stageAssets mirrors the assets root into output/assets, driven by the same
// snapshot diff the planner uses for sources. Per-file failures are logged
// and the batch continues; a broken stylesheet should not cost the whole
// site.
func (b *Builder) stageAssets(_ context.Context, log *slog.Logger) error {
	diff, err := b.registry.Diff(snapshot.RootAssets)
	if err != nil {
		return err
	}

	copied, deleted := 0, 0
	for p, change := range diff {
		dst := filepath.Join(b.paths.OutputDir, "assets", filepath.FromSlash(p))
		switch change {
		case snapshot.Added, snapshot.Modified:
			if err := copyAsset(filepath.Join(b.cfg.AssetsDir(), filepath.FromSlash(p)), dst); err != nil {
				log.Error("Asset copy failed", logfields.Path(p), logfields.Error(err))
				continue
			}
			copied++
		case snapshot.Deleted:
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				log.Error("Asset removal failed", logfields.Path(p), logfields.Error(err))
				continue
			}
			deleted++
		}
	}
	if copied > 0 || deleted > 0 {
		log.Info("Assets synced", slog.Int("copied", copied), slog.Int("deleted", deleted))
	}
	return nil
}

func copyAsset(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(dst, data, 0o644)
}
