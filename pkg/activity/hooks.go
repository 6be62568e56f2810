package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ActivityHook receives normalized view-state events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks is the set of hooks a controller reports to.
type Hooks []ActivityHook

// Compact returns a copy without nil entries, or nil when nothing is left.
func (h Hooks) Compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

// Enabled reports whether at least one hook would be notified.
func (h Hooks) Enabled() bool {
	for _, hook := range h {
		if hook != nil {
			return true
		}
	}
	return false
}

// Notify normalizes the event and hands it to every hook. Events that end up
// without a verb or object are dropped. Hook failures do not stop the fan
// out; they are joined and reported together with the verb and view.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if !h.Enabled() {
		return nil
	}
	normalized := NormalizeEvent(event)
	if !normalized.routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("activity: %s for view %q: %w", normalized.Verb, normalized.View.ViewID, errors.Join(errs...))
}

// FilterVerbs wraps hook so that it only sees the listed verbs.
func FilterVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	if hook == nil {
		return nil
	}
	allowed := append([]string(nil), verbs...)
	return HookFunc(func(ctx context.Context, event Event) error {
		if !MatchVerb(allowed, event.Verb) {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// MatchVerb reports whether verb is listed, ignoring case and surrounding
// space. An empty list matches every verb.
func MatchVerb(verbs []string, verb string) bool {
	if len(verbs) == 0 {
		return true
	}
	verb = strings.TrimSpace(verb)
	for _, allowed := range verbs {
		if strings.EqualFold(strings.TrimSpace(allowed), verb) {
			return true
		}
	}
	return false
}
