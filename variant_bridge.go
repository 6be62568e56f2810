package viewstate

import "sync"

// VariantBridge ties variant-management events to DeltaCache epochs. Every
// save or select event of an attached variant manager invalidates the
// baselines of its associated keys.
type VariantBridge struct {
	cache *DeltaCache

	mu       sync.Mutex
	attached map[string]struct{}
	notify   func(vm VariantManager, keys []string)
}

// NewVariantBridge binds a bridge to cache. notify, when set, is called after
// each invalidation.
func NewVariantBridge(cache *DeltaCache, notify func(vm VariantManager, keys []string)) *VariantBridge {
	return &VariantBridge{
		cache:    cache,
		attached: map[string]struct{}{},
		notify:   notify,
	}
}

// Attach registers the invalidation listener on vm. A variant manager is
// attached at most once; later calls report false and change nothing.
func (b *VariantBridge) Attach(vm VariantManager, keys []string) bool {
	if b == nil || vm == nil {
		return false
	}
	b.mu.Lock()
	if _, ok := b.attached[vm.ID()]; ok {
		b.mu.Unlock()
		return false
	}
	b.attached[vm.ID()] = struct{}{}
	b.mu.Unlock()

	keys = append([]string(nil), keys...)
	listener := func() {
		b.cache.Invalidate(keys...)
		if b.notify != nil {
			b.notify(vm, keys)
		}
	}
	vm.OnSave(listener)
	vm.OnSelect(listener)
	return true
}

// Attached reports whether the variant manager with id has listeners.
func (b *VariantBridge) Attached(id string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.attached[id]
	return ok
}
