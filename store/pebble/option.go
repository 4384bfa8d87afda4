package pebble

import (
	"log/slog"

	"github.com/cockroachdb/pebble/vfs"
)

type options struct {
	fs     vfs.FS
	sync   bool
	logger *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		sync:   true,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a pebble store.
type Option func(*options)

// WithFS sets the filesystem pebble writes to. vfs.NewMem() gives an
// in-memory database for tests.
func WithFS(fs vfs.FS) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithSync controls whether writes are fsynced before returning.
// Defaults to true.
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
