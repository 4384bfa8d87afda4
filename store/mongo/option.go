package mongo

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultDatabase   = "privmsg"
	DefaultCollection = "messages"
	DefaultTimeout    = 10 * time.Second
)

type options struct {
	database     string
	collection   string
	timeout      time.Duration
	logger       *slog.Logger
	transactions bool
	indexes      bool
}

func newOptions(opts ...Option) *options {
	o := &options{
		database:     DefaultDatabase,
		collection:   DefaultCollection,
		timeout:      DefaultTimeout,
		logger:       slog.Default(),
		transactions: true,
		indexes:      true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a MongoDB store.
type Option func(*options)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.collection = name
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

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransactions controls whether replies are written in a session
// transaction. Disable it for standalone servers; replies then use the
// stamp-then-insert sequence with a compensating update.
func WithTransactions(enabled bool) Option {
	return func(o *options) {
		o.transactions = enabled
	}
}

// WithIndexes controls whether Connect creates the folder indexes.
// Disable it when indexes are managed outside the application.
func WithIndexes(enabled bool) Option {
	return func(o *options) {
		o.indexes = enabled
	}
}
