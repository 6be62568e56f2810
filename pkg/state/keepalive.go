package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	viewstate "github.com/goliatone/go-viewstate"
)

// KeepAlive suspends a view into a Store and resumes it from there.
type KeepAlive struct {
	Store Store[viewstate.Snapshot]
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() string
}

// Suspend retrieves the view state and saves it under ref. A snapshot equal to
// the stored one is not written again and its meta is returned unchanged.
// When expected.ETag is set and differs from the stored ETag, nothing is
// saved and ErrETagMismatch is returned.
func (k KeepAlive) Suspend(ctx context.Context, ref Ref, view viewstate.ViewState, expected Meta) (Meta, error) {
	if k.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if view == nil {
		return Meta{}, fmt.Errorf("state: view is required")
	}

	snapshot, ok, err := view.RetrieveViewState(ctx)
	if err != nil {
		return Meta{}, fmt.Errorf("state: retrieve view state: %w", err)
	}
	if !ok {
		return Meta{}, ErrSuperseded
	}

	etag, err := snapshotETag(snapshot)
	if err != nil {
		return Meta{}, err
	}

	_, loaded, found, err := k.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q/%q: %w", ref.App, ref.View, err)
	}
	if expected.ETag != "" && found && loaded.ETag != "" && expected.ETag != loaded.ETag {
		return loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected.ETag, loaded.ETag)
	}
	if found && loaded.ETag == etag {
		return loaded, nil
	}

	meta := mergeMeta(loaded, expected)
	meta.SnapshotID = k.newID()
	meta.ETag = etag
	meta.UpdatedAt = k.now()
	saved, err := k.Store.Save(ctx, ref, snapshot, meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q/%q: %w", ref.App, ref.View, err)
	}
	return saved, nil
}

// applyGate is implemented by views that may ignore ApplyViewState, such as
// a viewstate.Controller with apply-once enabled.
type applyGate interface {
	AcceptsApply() bool
}

// Resume loads the snapshot of ref and applies it as a restored application
// state. A view that would ignore the apply yields ErrAlreadyApplied along
// with the stored meta; such views need ApplyInitialStateOnly to be false to
// be resumed more than once.
func (k KeepAlive) Resume(ctx context.Context, ref Ref, view viewstate.ViewState) (Meta, error) {
	if k.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if view == nil {
		return Meta{}, fmt.Errorf("state: view is required")
	}

	snapshot, meta, ok, err := k.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q/%q: %w", ref.App, ref.View, err)
	}
	if !ok {
		return Meta{}, ErrNoSnapshot
	}

	if gate, ok := view.(applyGate); ok && !gate.AcceptsApply() {
		return meta, fmt.Errorf("%w: %q/%q", ErrAlreadyApplied, ref.App, ref.View)
	}

	nav := viewstate.NavigationParameter{NavigationType: viewstate.NavigationTypeIAppState}
	if err := view.ApplyViewState(ctx, snapshot, nav); err != nil {
		return meta, fmt.Errorf("state: apply view state: %w", err)
	}
	return meta, nil
}

func (k KeepAlive) now() time.Time {
	if k.Now != nil {
		return k.Now()
	}
	return time.Now()
}

func (k KeepAlive) newID() string {
	if k.NewID != nil {
		return k.NewID()
	}
	return uuid.NewString()
}

func snapshotETag(snapshot viewstate.Snapshot) (string, error) {
	data, err := viewstate.EncodeSnapshot(snapshot)
	if err != nil {
		return "", fmt.Errorf("state: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16]), nil
}
