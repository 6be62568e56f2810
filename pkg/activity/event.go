package activity

import (
	"strings"
	"time"
)

// ViewContext identifies the view and control an event refers to.
type ViewContext struct {
	ViewID     string
	ControlID  string
	Key        string
	VariantKey string
}

func (v ViewContext) trimmed() ViewContext {
	return ViewContext{
		ViewID:     strings.TrimSpace(v.ViewID),
		ControlID:  strings.TrimSpace(v.ControlID),
		Key:        strings.TrimSpace(v.Key),
		VariantKey: strings.TrimSpace(v.VariantKey),
	}
}

// objectID is the control when there is one, the view otherwise.
func (v ViewContext) objectID() string {
	if v.ControlID != "" {
		return v.ControlID
	}
	return v.ViewID
}

// Event is a view-state lifecycle occurrence. View is folded into Metadata
// by NormalizeEvent so that sinks without a notion of views still see it.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	View           ViewContext
	Metadata       map[string]any
	OccurredAt     time.Time
}

func (e Event) routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// NormalizeEvent prepares an event for hooks. It trims identifiers, copies
// slices and metadata, derives ObjectID from the view context when it is
// missing and stamps OccurredAt.
func NormalizeEvent(event Event) Event {
	out := Event{
		Verb:           strings.TrimSpace(event.Verb),
		ActorID:        strings.TrimSpace(event.ActorID),
		UserID:         strings.TrimSpace(event.UserID),
		TenantID:       strings.TrimSpace(event.TenantID),
		ObjectType:     strings.TrimSpace(event.ObjectType),
		ObjectID:       strings.TrimSpace(event.ObjectID),
		Channel:        strings.TrimSpace(event.Channel),
		DefinitionCode: strings.TrimSpace(event.DefinitionCode),
		View:           event.View.trimmed(),
		Metadata:       cloneMap(event.Metadata),
		OccurredAt:     event.OccurredAt,
	}
	if len(event.Recipients) > 0 {
		out.Recipients = append([]string{}, event.Recipients...)
	}
	if out.ObjectID == "" {
		out.ObjectID = out.View.objectID()
	}
	if out.ObjectID == "" {
		out.ObjectID = out.ObjectType
	}
	out.Metadata = foldView(out.Metadata, out.View)
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// foldView copies the non-empty view fields into meta. Explicit metadata
// entries win.
func foldView(meta map[string]any, view ViewContext) map[string]any {
	for key, value := range map[string]string{
		"view_id":     view.ViewID,
		"control_id":  view.ControlID,
		"key":         view.Key,
		"variant_key": view.VariantKey,
	} {
		if value == "" {
			continue
		}
		if meta == nil {
			meta = map[string]any{}
		}
		if _, set := meta[key]; !set {
			meta[key] = value
		}
	}
	return meta
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
