package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disiqueira/gotree/v3"

	"git.home.luguber.info/inful/sitebuilder/internal/doctree"
	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// TreeCmd implements the 'tree' command: a quick look at the site structure
// the last build recorded.
type TreeCmd struct{}

func (t *TreeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}

	path := filepath.Join(cfg.CacheDir(), "doctree.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fnderr.New(fnderr.CategoryCache, "no build cache yet, run 'sitebuilder build' first").Build()
		}
		return err
	}
	site := doctree.New()
	if err := json.Unmarshal(data, site); err != nil {
		return fnderr.CacheCorruption("site tree cache is unreadable").WithContext("path", path).Build()
	}

	out := gotree.New(nodeLabel(site.Root()))
	addChildren(out, site.Root())
	fmt.Print(out.Print())
	return nil
}

func addChildren(parent gotree.Tree, n doctree.Node) {
	for _, child := range n.Children() {
		addChildren(parent.Add(nodeLabel(child)), child)
	}
}

// nodeLabel renders one tree entry; placeholders are marked since they have
// no page of their own.
func nodeLabel(n doctree.Node) string {
	if n.IsDocument() {
		return n.Title()
	}
	return n.Title() + " (section)"
}
