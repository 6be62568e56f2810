package viewstate

import (
	"reflect"
	"testing"
)

func TestVariantBridgeInvalidatesOnSaveAndSelect(t *testing.T) {
	cache := NewDeltaCache()
	cache.Store("FB", 0, map[string]any{"v": 1})
	cache.Store("T", 0, map[string]any{"v": 1})
	cache.Store("Other", 0, map[string]any{"v": 1})

	var notified [][]string
	bridge := NewVariantBridge(cache, func(_ VariantManager, keys []string) {
		notified = append(notified, keys)
	})
	vm := newVariantManager("VM", []string{"std"}, nil, nil)

	if !bridge.Attach(vm, []string{"FB", "T"}) {
		t.Fatalf("expected first attach to succeed")
	}
	if bridge.Attach(vm, []string{"FB"}) {
		t.Fatalf("expected second attach to be ignored")
	}
	if !bridge.Attached("VM") || bridge.Attached("VM2") {
		t.Fatalf("unexpected attached state")
	}

	vm.save("mine")
	if cache.Epoch("FB") != 1 || cache.Epoch("T") != 1 || cache.Epoch("Other") != 0 {
		t.Fatalf("unexpected epochs after save: FB=%d T=%d Other=%d", cache.Epoch("FB"), cache.Epoch("T"), cache.Epoch("Other"))
	}
	vm.selectVariant("std")
	if cache.Epoch("FB") != 2 {
		t.Fatalf("expected select to start another epoch, got %d", cache.Epoch("FB"))
	}
	if _, ok := cache.Baseline("Other"); !ok {
		t.Fatalf("expected unrelated baseline kept")
	}

	want := [][]string{{"FB", "T"}, {"FB", "T"}}
	if !reflect.DeepEqual(want, notified) {
		t.Fatalf("unexpected notifications %v", notified)
	}
}

func TestVariantBridgeNil(t *testing.T) {
	var bridge *VariantBridge
	if bridge.Attach(newVariantManager("VM", []string{"std"}, nil, nil), nil) {
		t.Fatalf("expected nil bridge to refuse attach")
	}
	if bridge.Attached("VM") {
		t.Fatalf("expected nil bridge to report nothing attached")
	}
}
