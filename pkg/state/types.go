package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrETagMismatch reports a save whose expected ETag no longer matches.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrSuperseded reports a suspension whose retrieval was superseded by a
	// later one. Nothing was saved.
	ErrSuperseded = errors.New("state: view state retrieval superseded")
	// ErrNoSnapshot reports a resumption without a stored snapshot.
	ErrNoSnapshot = errors.New("state: no snapshot stored")
	// ErrAlreadyApplied reports a resumption into a view that only restores
	// its initial state and has already done so. Nothing was applied.
	ErrAlreadyApplied = errors.New("state: view state already applied")
)

// Ref identifies one persisted snapshot of one view.
type Ref struct {
	App  string
	View string
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single view reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Identifier returns the canonical storage key of r.
func (r Ref) Identifier() (string, error) {
	if err := validateSegment("app", r.App); err != nil {
		return "", err
	}
	if err := validateSegment("view", r.View); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", r.App, r.View), nil
}

func validateSegment(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing %s in ref", name)
	}
	if strings.Contains(value, "/") {
		return fmt.Errorf("%s %q must not contain '/'", name, value)
	}
	return nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
