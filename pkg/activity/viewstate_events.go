package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the view-state controller.
const (
	VerbStateApplied           = "viewstate.applied"
	VerbStateRetrieved         = "viewstate.retrieved"
	VerbBaselineInvalidated    = "viewstate.baseline.invalidated"
	VerbVariantActivated       = "viewstate.variant.activated"
	VerbVariantUnavailable     = "viewstate.variant.unavailable"
	ObjectTypeViewState        = "viewstate"
	ObjectTypeViewStateVariant = "viewstate.variant"
)

// ViewStateEventInput describes the common fields for view-state lifecycle events.
type ViewStateEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	View           ViewContext
	NavigationType string
	Keys           []string
	OccurredAt     time.Time
}

// BuildStateAppliedEvent reports a settled applyViewState call.
func BuildStateAppliedEvent(input ViewStateEventInput) Event {
	return buildViewStateEvent(VerbStateApplied, ObjectTypeViewState, input)
}

// BuildStateRetrievedEvent reports a retrieveViewState call that produced a snapshot.
func BuildStateRetrievedEvent(input ViewStateEventInput) Event {
	return buildViewStateEvent(VerbStateRetrieved, ObjectTypeViewState, input)
}

// BuildBaselineInvalidatedEvent reports the end of a delta baseline epoch.
func BuildBaselineInvalidatedEvent(input ViewStateEventInput) Event {
	return buildViewStateEvent(VerbBaselineInvalidated, ObjectTypeViewState, input)
}

// BuildVariantActivatedEvent reports a successful variant activation.
func BuildVariantActivatedEvent(input ViewStateEventInput) Event {
	return buildViewStateEvent(VerbVariantActivated, ObjectTypeViewStateVariant, input)
}

// BuildVariantUnavailableEvent reports a fallback to the standard variant.
func BuildVariantUnavailableEvent(input ViewStateEventInput) Event {
	return buildViewStateEvent(VerbVariantUnavailable, ObjectTypeViewStateVariant, input)
}

// buildViewStateEvent leaves ObjectID empty unless the input names one;
// NormalizeEvent derives it once the emitter has stamped the view.
func buildViewStateEvent(verb, objectType string, input ViewStateEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.NavigationType != "" {
		metadata = ensureMetadata(metadata)
		metadata["navigation_type"] = input.NavigationType
	}
	if len(input.Keys) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["keys"] = append([]string{}, input.Keys...)
	}

	var recipients []string
	if len(input.Recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       strings.TrimSpace(input.ObjectID),
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		View:           input.View,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
