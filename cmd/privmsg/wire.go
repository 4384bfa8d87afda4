package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rbaliyan/privmsg"
	"github.com/rbaliyan/privmsg/internal/config"
	"github.com/rbaliyan/privmsg/notify/email"
	"github.com/rbaliyan/privmsg/notify/inapp"
	"github.com/rbaliyan/privmsg/resolver"
	"github.com/rbaliyan/privmsg/retry"
	"github.com/rbaliyan/privmsg/store"
	"github.com/rbaliyan/privmsg/store/memory"
	"github.com/rbaliyan/privmsg/store/mongo"
	"github.com/rbaliyan/privmsg/store/pebble"
	"github.com/rbaliyan/privmsg/store/postgres"
	"github.com/rbaliyan/privmsg/store/sqlite"
	"github.com/redis/go-redis/v9"
)

// app holds the wired service and the resources it does not own.
type app struct {
	svc     privmsg.Service
	logger  *slog.Logger
	closers []func(ctx context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	st, err := a.newStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	opts := []privmsg.Option{
		privmsg.WithStore(st),
		privmsg.WithLogger(logger),
		privmsg.WithMaxSubjectLength(cfg.Messages.MaxSubjectLength),
		privmsg.WithMaxBodySize(cfg.Messages.MaxBodySize),
		privmsg.WithMaxQueryLimit(cfg.Messages.MaxQueryLimit),
		privmsg.WithDefaultQueryLimit(cfg.Messages.DefaultQueryLimit),
		privmsg.WithTracing(cfg.Telemetry.Tracing),
		privmsg.WithMetrics(cfg.Telemetry.Metrics),
		privmsg.WithServiceName(cfg.Telemetry.ServiceName),
	}

	if cfg.Notifications.Enabled {
		n, err := a.newNotifier(cfg.Notifications)
		if err != nil {
			_ = a.close(ctx)
			return nil, err
		}
		policy := retry.DefaultPolicy()
		policy.Attempts = cfg.Notifications.Retries
		opts = append(opts,
			privmsg.WithNotifier(n),
			privmsg.WithAsyncNotify(cfg.Notifications.Async),
			privmsg.WithNotifyTimeout(cfg.Notifications.Timeout),
			privmsg.WithNotifyRetry(policy),
		)
	}

	svc, err := privmsg.New(opts...)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	if err := svc.Connect(ctx); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// close shuts the service down, then releases clients in reverse order.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.svc != nil {
		if err := a.svc.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) newStore(cfg config.StoreConfig) (store.Store, error) {
	logger := a.logger.With("store", cfg.Driver)
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(cfg.Path,
			sqlite.WithTable(cfg.Table),
			sqlite.WithTimeout(cfg.Timeout),
			sqlite.WithLogger(logger),
		)
	case "postgres":
		st, err := postgres.Open(cfg.DSN,
			postgres.WithTable(cfg.Table),
			postgres.WithTimeout(cfg.Timeout),
			postgres.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		// Releases the pool when the service never connected; a no-op after svc.Close.
		a.closers = append(a.closers, st.Close)
		return st, nil
	case "mongo":
		client, err := mongo.Dial(cfg.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		return mongo.New(client,
			mongo.WithDatabase(cfg.Database),
			mongo.WithCollection(cfg.Collection),
			mongo.WithTimeout(cfg.Timeout),
			mongo.WithTransactions(!cfg.Standalone),
			mongo.WithLogger(logger),
		), nil
	case "pebble":
		return pebble.New(cfg.Path, pebble.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func (a *app) newNotifier(cfg config.NotificationConfig) (privmsg.Notifier, error) {
	logger := a.logger.With("notifier", cfg.Backend)
	switch cfg.Backend {
	case "inapp":
		opts := []inapp.Option{inapp.WithName(cfg.InApp.Name), inapp.WithLogger(logger)}
		if cfg.InApp.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.InApp.RedisAddr})
			a.closers = append(a.closers, func(context.Context) error { return client.Close() })
			opts = append(opts, inapp.WithRedisClient(client))
		}
		return inapp.New(opts...), nil
	case "email":
		sender, err := email.NewSMTPSender(cfg.Email.SMTPAddr, cfg.Email.Username, cfg.Email.Password)
		if err != nil {
			return nil, err
		}
		contacts, err := contactsFromConfig(cfg.Email.Contacts)
		if err != nil {
			return nil, err
		}
		return email.New(resolver.NewStatic(contacts...), sender,
			email.WithFrom(cfg.Email.From),
			email.WithRateLimit(cfg.Email.RatePerSecond, cfg.Email.Burst),
			email.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unknown notification backend %q", cfg.Backend)
	}
}

func contactsFromConfig(m map[string]string) ([]privmsg.Contact, error) {
	contacts := make([]privmsg.Contact, 0, len(m))
	for key, addr := range m {
		ref, err := privmsg.ParsePrincipalRef(key)
		if err != nil {
			return nil, fmt.Errorf("notifications.email.contacts: %w", err)
		}
		contacts = append(contacts, privmsg.Contact{Ref: ref, Name: key, Email: addr})
	}
	return contacts, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
