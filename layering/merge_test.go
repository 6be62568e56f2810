package layering

import (
	"reflect"
	"testing"
)

func TestMergeFragmentsLaterWins(t *testing.T) {
	cases := []struct {
		name      string
		fragments []any
		want      any
	}{
		{
			name:      "empty",
			fragments: nil,
			want:      nil,
		},
		{
			name:      "nil fragments skipped",
			fragments: []any{nil, map[string]any{"selectedKey": "a"}, nil},
			want:      map[string]any{"selectedKey": "a"},
		},
		{
			name: "nested maps merge key by key",
			fragments: []any{
				map[string]any{"filter": map[string]any{"Region": []any{"EU"}}, "sort": "asc"},
				map[string]any{"filter": map[string]any{"Country": []any{"DE"}}},
			},
			want: map[string]any{
				"filter": map[string]any{"Region": []any{"EU"}, "Country": []any{"DE"}},
				"sort":   "asc",
			},
		},
		{
			name: "slices are replaced",
			fragments: []any{
				map[string]any{"columns": []any{"a", "b"}},
				map[string]any{"columns": []any{"c"}},
			},
			want: map[string]any{"columns": []any{"c"}},
		},
		{
			name: "scalar replaces map",
			fragments: []any{
				map[string]any{"variantId": map[string]any{"x": 1}},
				map[string]any{"variantId": "v2"},
			},
			want: map[string]any{"variantId": "v2"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Merge(tc.fragments...)
			if !reflect.DeepEqual(tc.want, got) {
				t.Fatalf("merge mismatch:\nwant: %#v\n got: %#v", tc.want, got)
			}
		})
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	first := map[string]any{"filter": map[string]any{"Region": []any{"EU"}}}
	second := map[string]any{"sort": "desc"}

	merged := Merge(first, second).(map[string]any)
	merged["filter"].(map[string]any)["Region"] = []any{"US"}

	region := first["filter"].(map[string]any)["Region"].([]any)
	if region[0] != "EU" {
		t.Fatalf("expected input untouched, got %v", region)
	}
}

func TestMergeLayersStrongestFirst(t *testing.T) {
	type settings struct {
		Enabled *bool
		Limits  map[string]int
		Tags    []string
	}
	on := true
	strong := settings{Limits: map[string]int{"a": 2}}
	weak := settings{Enabled: &on, Limits: map[string]int{"a": 1, "b": 1}, Tags: []string{"x"}}

	got := MergeLayers(strong, weak)
	if got.Enabled == nil || !*got.Enabled {
		t.Fatalf("expected enabled from weak layer, got %+v", got)
	}
	if got.Limits["a"] != 2 || got.Limits["b"] != 1 {
		t.Fatalf("unexpected limits %+v", got.Limits)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "x" {
		t.Fatalf("unexpected tags %+v", got.Tags)
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	type sample struct {
		Value int
	}
	var zero sample
	if got := MergeLayers[sample](); got != zero {
		t.Fatalf("expected MergeLayers() to return zero value, got %+v", got)
	}
}

func TestCloneDetachesNestedValues(t *testing.T) {
	original := map[string]any{"filter": map[string]any{"Region": []any{"EU"}}}
	clone := Clone(original)
	clone["filter"].(map[string]any)["Region"] = []any{"US"}

	if original["filter"].(map[string]any)["Region"].([]any)[0] != "EU" {
		t.Fatalf("expected clone to be detached from original")
	}

	var nilMap map[string]any
	if Clone(nilMap) != nil {
		t.Fatalf("expected nil clone for nil map")
	}
	if Clone[any](nil) != nil {
		t.Fatalf("expected nil clone for nil interface")
	}
}
