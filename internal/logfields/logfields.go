package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDocument   = "document"
	KeyTemplate   = "template"
	KeyPath       = "path"
	KeyRoot       = "root"
	KeyAction     = "action"
	KeyDurationMS = "duration_ms"
	KeyRendered   = "rendered"
	KeyRemoved    = "removed"
	KeyFailed     = "failed"
	KeyPlugin     = "plugin"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Document(id string) slog.Attr     { return slog.String(KeyDocument, id) }
func Template(id string) slog.Attr     { return slog.String(KeyTemplate, id) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Root(name string) slog.Attr       { return slog.String(KeyRoot, name) }
func Action(a string) slog.Attr        { return slog.String(KeyAction, a) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Rendered(n int) slog.Attr         { return slog.Int(KeyRendered, n) }
func Removed(n int) slog.Attr          { return slog.Int(KeyRemoved, n) }
func Failed(n int) slog.Attr           { return slog.Int(KeyFailed, n) }
func Plugin(name string) slog.Attr     { return slog.String(KeyPlugin, name) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
