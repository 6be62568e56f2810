package activity

import (
	"context"
	"testing"
)

func TestBuildVariantActivatedEventIncludesViewMetadata(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	input := ViewStateEventInput{
		ActorID:  " actor ",
		UserID:   " user ",
		TenantID: " tenant ",
		Metadata: meta,
		View: ViewContext{
			ViewID:     "listReport",
			ControlID:  "listReport--vm",
			Key:        "vm",
			VariantKey: "v2",
		},
		Keys:       []string{"fb", "table"},
		Recipients: []string{"user@example.com"},
		Channel:    "viewstate",
	}

	built := BuildVariantActivatedEvent(input)
	if built.ObjectID != "" || built.View.ControlID != "listReport--vm" {
		t.Fatalf("expected object id left to normalization, got %+v", built)
	}
	event := NormalizeEvent(built)

	if event.Verb != VerbVariantActivated {
		t.Fatalf("expected verb %s got %s", VerbVariantActivated, event.Verb)
	}
	if event.ObjectType != ObjectTypeViewStateVariant || event.ObjectID != "listReport--vm" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.UserID != "user" || event.TenantID != "tenant" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Metadata["view_id"] != "listReport" || event.Metadata["key"] != "vm" || event.Metadata["variant_key"] != "v2" {
		t.Fatalf("expected view metadata, got %+v", event.Metadata)
	}
	keys, ok := event.Metadata["keys"].([]string)
	if !ok || len(keys) != 2 {
		t.Fatalf("expected keys metadata, got %v", event.Metadata["keys"])
	}
	keys[0] = "changed"
	if input.Keys[0] != "fb" {
		t.Fatalf("expected input keys untouched, got %v", input.Keys)
	}
	event.Recipients[0] = "changed"
	if input.Recipients[0] != "user@example.com" {
		t.Fatalf("expected input recipients untouched, got %v", input.Recipients)
	}
	if meta["custom"] != "value" || len(meta) != 1 {
		t.Fatalf("expected input metadata untouched, got %v", meta)
	}
}

func TestBuildStateAppliedEventFallsBackToViewID(t *testing.T) {
	event := NormalizeEvent(BuildStateAppliedEvent(ViewStateEventInput{
		View:           ViewContext{ViewID: "objectPage"},
		NavigationType: "iAppState",
	}))
	if event.ObjectID != "objectPage" {
		t.Fatalf("expected view id as object id, got %q", event.ObjectID)
	}
	if event.Metadata["navigation_type"] != "iAppState" {
		t.Fatalf("expected navigation type metadata, got %+v", event.Metadata)
	}
}

func TestBuildBaselineInvalidatedEventUsesFallbackObjectID(t *testing.T) {
	event := NormalizeEvent(BuildBaselineInvalidatedEvent(ViewStateEventInput{}))
	if event.ObjectID != ObjectTypeViewState {
		t.Fatalf("expected fallback object ID %q, got %q", ObjectTypeViewState, event.ObjectID)
	}
}

func TestBuildViewStateEventsWorkWithHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	if err := hooks.Notify(context.Background(), BuildStateRetrievedEvent(ViewStateEventInput{
		View: ViewContext{ViewID: "listReport"},
		Keys: []string{"fb"},
	})); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected capture to record event, got %d", len(capture.Events))
	}
	if capture.Events[0].Verb != VerbStateRetrieved {
		t.Fatalf("expected verb %s, got %s", VerbStateRetrieved, capture.Events[0].Verb)
	}
}
