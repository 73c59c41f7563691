package jconv

import "go.uber.org/zap"

const (
	defaultKeyCacheBits = 10
	defaultMaxDepth     = 200
)

// Configuration registers additional converters into a registry.  Code
// generators emit one per package of bindings; callers list them in Config.
type Configuration func(r *Registry)

// Config holds registry construction settings.
type Config struct {
	// Fallback handles types no registered converter resolves.  Nil means
	// such types are errors.
	Fallback Fallback

	// KeyCacheBits is the log2 size of the key cache used while reading
	// untyped maps.  Zero disables the cache.
	KeyCacheBits int

	// MaxDepth limits nesting of untyped values.  Values <= 0 use the
	// default of 200.
	MaxDepth int

	// OmitDefaults is passed to self-describing values when they are
	// written.
	OmitDefaults bool

	// SkipBuiltins leaves the registry empty apart from Configurations.
	SkipBuiltins bool

	// Configurations run in order after the built-in converters are
	// registered.
	Configurations []Configuration

	// Logger overrides the package logger.
	Logger *zap.Logger
}

// DefaultConfig returns the configuration used by NewRegistry.
func DefaultConfig() Config {
	return Config{
		KeyCacheBits: defaultKeyCacheBits,
		MaxDepth:     defaultMaxDepth,
	}
}
