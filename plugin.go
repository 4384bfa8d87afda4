package privmsg

import (
	"context"
	"errors"
	"log/slog"
)

// Plugin defines the interface for privmsg extensions.
// Plugins are initialized on Connect and closed on Close. A Notifier that
// also implements Plugin gets the same lifecycle.
type Plugin interface {
	// Name returns the plugin identifier.
	Name() string
	// Init initializes the plugin. Called when service connects.
	Init(ctx context.Context) error
	// Close cleans up plugin resources. Called when service closes.
	Close(ctx context.Context) error
}

// ComposeHook is called before/after a message is stored.
// Use it for spam filtering, rate limiting or auditing.
type ComposeHook interface {
	Plugin
	// BeforeCompose runs after form validation. Return an error to abort;
	// nothing is stored.
	BeforeCompose(ctx context.Context, req ComposeRequest) error
	// AfterCompose runs once the message is committed. Errors are logged
	// and do not fail the compose.
	AfterCompose(ctx context.Context, msg Message) error
}

// pluginRegistry holds registered plugins.
type pluginRegistry struct {
	all     []Plugin
	compose []ComposeHook
	logger  *slog.Logger
}

func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

func (r *pluginRegistry) register(p Plugin) {
	for _, existing := range r.all {
		if existing == p {
			return
		}
	}
	r.all = append(r.all, p)
	if h, ok := p.(ComposeHook); ok {
		r.compose = append(r.compose, h)
	}
}

// initAll initializes all plugins.
// On failure, already-initialized plugins are closed in reverse order.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.all {
		if err := p.Init(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if closeErr := r.all[j].Close(ctx); closeErr != nil {
					r.logger.Error("failed to close plugin during init rollback",
						"plugin", r.all[j].Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

// closeAll closes all plugins in reverse order.
func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.all) - 1; i >= 0; i-- {
		if err := r.all[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: r.all[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

// PluginError represents an error from a plugin.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + " " + e.Op + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

func (r *pluginRegistry) beforeCompose(ctx context.Context, req ComposeRequest) error {
	for _, h := range r.compose {
		if err := h.BeforeCompose(ctx, req); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeCompose", Err: err}
		}
	}
	return nil
}

// afterCompose runs every hook even if one fails.
func (r *pluginRegistry) afterCompose(ctx context.Context, msg Message) error {
	var errs []error
	for _, h := range r.compose {
		if err := h.AfterCompose(ctx, msg); err != nil {
			errs = append(errs, &PluginError{Plugin: h.Name(), Op: "AfterCompose", Err: err})
		}
	}
	return errors.Join(errs...)
}
