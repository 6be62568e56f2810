package viewstate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tiendc/go-deepcopy"
	"golang.org/x/sync/errgroup"
)

// DeltaCache keeps, per control state key, the baseline a delta-capable
// control's state is diffed against. Every key carries an epoch counter:
// Invalidate starts a new epoch and a seed started in an older epoch is
// dropped.
type DeltaCache struct {
	mu      sync.Mutex
	entries map[string]*deltaEntry
}

type deltaEntry struct {
	epoch uint64
	state map[string]any
	set   bool
}

// NewDeltaCache returns an empty cache. Keys without an entry are not in
// delta mode.
func NewDeltaCache() *DeltaCache {
	return &DeltaCache{entries: map[string]*deltaEntry{}}
}

// Envelope wraps full with the baseline of key. When key is not tracked full
// is returned unwrapped. The first state observed in an epoch without a
// baseline becomes that epoch's baseline.
func (c *DeltaCache) Envelope(key string, full map[string]any) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return full
	}
	if !entry.set {
		entry.state = copyState(full)
		entry.set = true
	}
	return DeltaEnvelope{
		FullState:    full,
		InitialState: copyState(entry.state),
	}
}

// Epoch returns the current epoch of key.
func (c *DeltaCache) Epoch(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		return entry.epoch
	}
	return 0
}

// Store records baseline for key if epoch is still current. It reports
// whether the baseline was kept.
func (c *DeltaCache) Store(key string, epoch uint64, baseline map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		if epoch != 0 {
			return false
		}
		entry = &deltaEntry{}
		c.entries[key] = entry
	}
	if entry.epoch != epoch {
		return false
	}
	entry.state = copyState(baseline)
	entry.set = true
	return true
}

// Baseline returns a copy of the baseline held for key.
func (c *DeltaCache) Baseline(key string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || !entry.set {
		return nil, false
	}
	return copyState(entry.state), true
}

// Tracked reports whether key is in delta mode.
func (c *DeltaCache) Tracked(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Invalidate ends the running epoch of every key. Untracked keys start
// being tracked.
func (c *DeltaCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		entry, ok := c.entries[key]
		if !ok {
			entry = &deltaEntry{}
			c.entries[key] = entry
		}
		entry.epoch++
		entry.state = map[string]any{}
		entry.set = false
	}
}

// Keys lists the tracked keys sorted alphabetically.
func (c *DeltaCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Seed concurrently retrieves the external state of every target and stores
// it as the new baseline for its key. Targets whose epoch moved while the
// retrieval was in flight keep their newer epoch. Retrieval failures are
// joined; the remaining targets are still seeded.
func (c *DeltaCache) Seed(ctx context.Context, util StateUtil, targets map[string]Control) error {
	if len(targets) == 0 {
		return nil
	}
	if util == nil {
		return fmt.Errorf("viewstate: seed baselines: state util is nil")
	}

	epochs := make(map[string]uint64, len(targets))
	for key := range targets {
		epochs[key] = c.Epoch(key)
	}

	var (
		group errgroup.Group
		mu    sync.Mutex
		errs  []error
	)
	for key, control := range targets {
		key, control := key, control
		group.Go(func() error {
			state, err := util.RetrieveExternalState(ctx, control)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("viewstate: seed baseline %q: %w", key, err))
				mu.Unlock()
				return nil
			}
			c.Store(key, epochs[key], state)
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

func copyState(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := deepcopy.Copy(&out, state); err != nil || out == nil {
		out = make(map[string]any, len(state))
		for key, value := range state {
			out[key] = value
		}
	}
	return out
}
