// Package botmode holds the shared assistant-enabled gate. The bot
// process and the ingestion control-plane each keep an atomic local copy,
// seeded from the persisted setting at startup and kept in sync through a
// NATS broadcast, so a toggle in one process is visible to the other
// within one message delivery.
package botmode

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/CoachingAI/coaching-mvp/pkg/natsutil"
)

// Subject carries bot-mode updates between processes.
const Subject = "coach.botmode"

// Setting is the persisted form of the flag.
type Setting interface {
	LoadBotMode(ctx context.Context) (bool, error)
	SaveBotMode(ctx context.Context, enabled bool) error
}

type update struct {
	Enabled bool `json:"enabled"`
}

// Flag is the process-local view of the shared gate. Reads are lock-free.
type Flag struct {
	enabled atomic.Bool
	setting Setting
	nc      *nats.Conn
	sub     *nats.Subscription
	logger  *slog.Logger
}

// New seeds the flag from the persisted setting and subscribes to remote
// toggles. setting and nc may each be nil, which disables persistence and
// cross-process sync respectively.
func New(ctx context.Context, setting Setting, nc *nats.Conn, logger *slog.Logger) (*Flag, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Flag{setting: setting, nc: nc, logger: logger}
	f.enabled.Store(true)

	if setting != nil {
		enabled, err := setting.LoadBotMode(ctx)
		if err != nil {
			return nil, fmt.Errorf("botmode: load setting: %w", err)
		}
		f.enabled.Store(enabled)
	}

	if nc != nil {
		sub, err := natsutil.Subscribe(nc, Subject, func(_ context.Context, u update) {
			f.enabled.Store(u.Enabled)
			logger.Info("bot mode updated remotely", "enabled", u.Enabled)
		})
		if err != nil {
			return nil, fmt.Errorf("botmode: subscribe: %w", err)
		}
		f.sub = sub
	}
	return f, nil
}

// Enabled reports whether the assistant may answer right now.
func (f *Flag) Enabled() bool { return f.enabled.Load() }

// Set persists the flag, applies it locally, and broadcasts it to the
// other process. The local copy is updated even when the broadcast fails,
// so this process at least honors the toggle.
func (f *Flag) Set(ctx context.Context, enabled bool) error {
	if f.setting != nil {
		if err := f.setting.SaveBotMode(ctx, enabled); err != nil {
			return fmt.Errorf("botmode: save setting: %w", err)
		}
	}
	f.enabled.Store(enabled)
	if f.nc != nil {
		if err := natsutil.Publish(ctx, f.nc, Subject, update{Enabled: enabled}); err != nil {
			f.logger.Error("bot mode broadcast failed", "enabled", enabled, "error", err)
		}
	}
	return nil
}

// Toggle flips the flag and returns the new value.
func (f *Flag) Toggle(ctx context.Context) (bool, error) {
	next := !f.Enabled()
	if err := f.Set(ctx, next); err != nil {
		return f.Enabled(), err
	}
	return next, nil
}

// Close drops the NATS subscription.
func (f *Flag) Close() error {
	if f.sub != nil {
		return f.sub.Unsubscribe()
	}
	return nil
}
