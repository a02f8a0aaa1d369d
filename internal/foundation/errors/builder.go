package errors

// Builder provides a fluent API for creating ClassifiedError instances.
type Builder struct {
	category Category
	severity Severity
	message  string
	cause    error
	context  Context
}

// New creates a Builder with the specified category and message.
func New(category Category, message string) *Builder {
	return &Builder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(Context),
	}
}

// Wrap creates a Builder that wraps an existing error.
func Wrap(err error, category Category, message string) *Builder {
	return &Builder{
		category: category,
		severity: SeverityError,
		message:  message,
		cause:    err,
		context:  make(Context),
	}
}

// WithContext adds a context key-value pair.
func (b *Builder) WithContext(key string, value any) *Builder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *Builder) Fatal() *Builder {
	b.severity = SeverityFatal
	return b
}

// Warning sets the severity to warning.
func (b *Builder) Warning() *Builder {
	b.severity = SeverityWarning
	return b
}

// Build creates the final ClassifiedError.
func (b *Builder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for the common taxonomy.

// ConfigError creates a fatal configuration error builder.
func ConfigError(message string) *Builder {
	return New(CategoryConfig, message).Fatal()
}

// CacheCorruption creates a warning-level cache error builder. Callers are
// expected to log it and continue with empty state.
func CacheCorruption(message string) *Builder {
	return New(CategoryCache, message).Warning()
}

// MissingTemplate creates a per-document template error builder.
func MissingTemplate(template string) *Builder {
	return New(CategoryTemplate, "no such template").WithContext("template", template)
}

// PluginError creates a fatal plugin hook error builder.
func PluginError(message string) *Builder {
	return New(CategoryPlugin, message).Fatal()
}
