package core

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/steveyegge/vitality/internal/ai"
	"github.com/steveyegge/vitality/internal/config"
	"github.com/steveyegge/vitality/internal/notify"
	"github.com/steveyegge/vitality/internal/storage"
)

// FromConfig builds a Service from deployment configuration. Console output of
// the console and email channels goes to out.
func FromConfig(cfg *config.Config, store storage.Storage, out io.Writer, logger *slog.Logger) (*Service, error) {
	goalSet, err := cfg.GoalSet()
	if err != nil {
		return nil, fmt.Errorf("invalid goals: %w", err)
	}

	sender, err := NewSender(cfg.Delivery.Channel, store, out)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Store:      store,
		Trend:      cfg.TrendEngineConfig(),
		Goals:      goalSet,
		Tolerance:  cfg.Recommendations.Tolerance,
		CoolDown:   cfg.Recommendations.CoolDown.Std(),
		Scheduler:  cfg.SchedulerConfig(),
		Dispatcher: cfg.DispatcherConfig(),
		Sender:     sender,
		Logger:     logger,
	}

	if cfg.AI.Enabled {
		p, err := ai.NewPersonalizer(ai.Config{
			Model:         cfg.AI.Model,
			MaxConcurrent: cfg.AI.MaxConcurrent,
			Timeout:       cfg.AI.Timeout.Std(),
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AI personalization: %w", err)
		}
		opts.Personalizer = p
	}

	return New(opts)
}

// NewSender returns the sender for a delivery channel
func NewSender(channel string, store storage.Storage, out io.Writer) (notify.Sender, error) {
	switch channel {
	case config.ChannelInbox, "":
		return notify.NewInboxSender(store), nil
	case config.ChannelConsole:
		return notify.NewConsoleSender(out), nil
	case config.ChannelEmail:
		return notify.NewDirectorySender(store, notify.NewConsoleSender(out)), nil
	default:
		return nil, fmt.Errorf("unknown delivery channel %q", channel)
	}
}
