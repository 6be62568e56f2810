package activity

import (
	"context"
	"strings"
)

// DefaultChannel is used for events that do not name a channel.
const DefaultChannel = "viewstate"

// Config is the activity block of the controller configuration.
//
//	activity:
//	  enabled: true
//	  channel: audit
//	  verbs: [viewstate.variant.activated, viewstate.variant.unavailable]
type Config struct {
	Enabled bool     `yaml:"enabled"`
	Channel string   `yaml:"channel"`
	Verbs   []string `yaml:"verbs"`
}

// Emitter is the controller side of activity reporting. It owns the hooks
// of one view and stamps channel and view id on each event.
type Emitter struct {
	hooks   Hooks
	channel string
	verbs   []string
	viewID  string
}

// NewEmitter returns nil when cfg disables emission or no hook is usable.
// A nil Emitter is valid and drops everything.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	hooks = hooks.Compact()
	if !cfg.Enabled || len(hooks) == 0 {
		return nil
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:   hooks,
		channel: channel,
		verbs:   append([]string(nil), cfg.Verbs...),
	}
}

// ForView returns a copy that attributes events without a view to viewID.
func (e *Emitter) ForView(viewID string) *Emitter {
	if e == nil {
		return nil
	}
	scoped := *e
	scoped.viewID = strings.TrimSpace(viewID)
	return &scoped
}

// Enabled reports whether Emit can reach a hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit forwards event to the hooks unless its verb is filtered out.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() || !MatchVerb(e.verbs, event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.View.ViewID) == "" {
		event.View.ViewID = e.viewID
	}
	return e.hooks.Notify(ctx, event)
}
