package commands

import (
	"fmt"
	"os"
	"path/filepath"

	fnderr "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Dir   string `arg:"" optional:"" help:"Project directory (default: current directory)" default:"."`
	Force bool   `help:"Overwrite an existing project file"`
}

const initProjectFile = `title: My Site

dirs:
  source: content
  templates: templates
  assets: assets
  output: _site
  cache: .sitebuilder

serve:
  port: 8080
`

const initTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Site}}: {{.Title}}</title>
  <link rel="stylesheet" href="{{asset "style.css"}}">
</head>
<body>
  <nav>{{breadcrumbs}}</nav>
  <main>
    {{.Content}}
  </main>
</body>
</html>
`

const initPage = `# Welcome

Your site lives in ` + "`content/`" + `. Run ` + "`sitebuilder serve`" + ` and start editing.
`

const initStylesheet = `body { max-width: 48rem; margin: 2rem auto; font-family: sans-serif; }
nav { color: #666; }
`

func (i *InitCmd) Run(_ *Global, _ *CLI) error {
	dir := i.Dir
	cfgPath := filepath.Join(dir, "site.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !i.Force {
		return fnderr.ConfigError("project file already exists, use --force to overwrite").
			WithContext("path", cfgPath).Build()
	}

	files := []struct {
		path    string
		content string
	}{
		{cfgPath, initProjectFile},
		{filepath.Join(dir, "content", "index.md"), initPage},
		{filepath.Join(dir, "templates", "page.html"), initTemplate},
		{filepath.Join(dir, "assets", "style.css"), initStylesheet},
	}
	for _, f := range files {
		p, content := f.path, f.content
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}

	fmt.Printf("Initialized site project in %s\n", dir)
	fmt.Println("Next: sitebuilder serve")
	return nil
}
