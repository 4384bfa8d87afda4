package postgres

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultTable             = "messages"
	DefaultTimeout           = 10 * time.Second
	DefaultSubjectColumnSize = 255
)

// options holds PostgreSQL store configuration.
type options struct {
	table             string
	timeout           time.Duration
	subjectColumnSize int
	logger            *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		table:             DefaultTable,
		timeout:           DefaultTimeout,
		subjectColumnSize: DefaultSubjectColumnSize,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a PostgreSQL store.
type Option func(*options)

// WithTable sets the table name.
func WithTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.table = name
		}
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSubjectColumnSize sets the VARCHAR size of the subject column used
// when the table is created. Validation limits are enforced by the service.
func WithSubjectColumnSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.subjectColumnSize = n
		}
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
