package errors

// Category represents the broad category of an error for classification and routing.
type Category string

const (
	// CategoryConfig covers invalid project files and bad user input. Fatal
	// before any build step runs.
	CategoryConfig Category = "config"

	// CategoryCache covers persisted snapshot/graph/tree state that failed to
	// load or parse. Recoverable: the affected state degrades to empty.
	CategoryCache Category = "cache"

	// CategoryTemplate covers missing or unrenderable templates. Fails only
	// the document being rendered.
	CategoryTemplate Category = "template"

	// CategoryRender covers per-document markup or output failures.
	CategoryRender Category = "render"

	// CategoryFileSystem covers per-file asset copy/removal failures.
	CategoryFileSystem Category = "filesystem"

	// CategoryPlugin covers plugin hook failures. Fatal: plugin and builder
	// state are unverified afterwards.
	CategoryPlugin Category = "plugin"

	// CategoryInternal covers bugs and unclassified failures.
	CategoryInternal Category = "internal"
)

// Severity indicates the impact level of an error.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // Stops execution completely
	SeverityError   Severity = "error"   // Fails the current operation
	SeverityWarning Severity = "warning" // Continues with degraded functionality
)

// Context provides structured context for errors.
type Context map[string]any

// Set adds or updates a context value.
func (c Context) Set(key string, value any) Context {
	if c == nil {
		c = make(Context)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c Context) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}
