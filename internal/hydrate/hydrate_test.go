package hydrate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

type decodeCase struct {
	Name          string
	Key           string
	ViewID        string
	Input         map[string]any
	Expect        tableState
	ExpectErr     string
	PreHooks      []string
	PostHooks     []string
	Options       []string
	CustomDecoder string
}

var decodeCases = []decodeCase{
	{
		Name: "plain payload",
		Key:  "Table",
		Input: map[string]any{
			"sorters": []any{map[string]any{"name": "Price", "descending": true}},
			"page":    2,
		},
		Expect: tableState{Sorters: []sorter{{Name: "Price", Descending: true}}, Page: 2},
	},
	{
		Name: "sorter shorthand expanded by pre-hook",
		Key:  "Table",
		Input: map[string]any{
			"sorters": "Price desc",
		},
		PreHooks: []string{"sorter_shorthand"},
		Expect:   tableState{Sorters: []sorter{{Name: "Price", Descending: true}}},
	},
	{
		Name:      "invalid shorthand fails",
		Key:       "Table",
		Input:     map[string]any{"sorters": "Price sideways"},
		PreHooks:  []string{"sorter_shorthand"},
		ExpectErr: "pre-hook for key \"Table\" failed",
	},
	{
		Name:      "post-hook tags the view",
		Key:       "Table",
		ViewID:    "app--list",
		Input:     map[string]any{"page": 1},
		PostHooks: []string{"ensure_tag"},
		Expect:    tableState{Page: 1, Tags: []string{"app--list:Table"}},
	},
	{
		Name:      "unknown fields rejected",
		Key:       "Table",
		Input:     map[string]any{"page": 1, "columns": []any{"a"}},
		Options:   []string{"disallow_unknown"},
		ExpectErr: "decode key \"Table\"",
	},
	{
		Name:          "custom decoder reads embedded json",
		Key:           "Table",
		Input:         map[string]any{"raw": `{"page":3}`},
		CustomDecoder: "raw_string",
		Expect:        tableState{Page: 3},
	},
	{
		Name:          "custom decoder error",
		Key:           "Table",
		Input:         map[string]any{},
		CustomDecoder: "raw_string",
		ExpectErr:     "custom decoder for key \"Table\" failed",
	},
}

func TestDecoderCases(t *testing.T) {
	for _, tc := range decodeCases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[tableState](buildOptions(tc)...)

			ctx := Context{
				ViewID: tc.ViewID,
				Key:    tc.Key,
			}

			result, err := decoder.Decode(ctx, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded state mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecoderRejectsNilPayload(t *testing.T) {
	_, err := NewDecoder[tableState]().Decode(Context{Key: "Table"}, nil)
	if err == nil || !strings.Contains(err.Error(), "payload is nil") {
		t.Fatalf("expected nil payload error, got %v", err)
	}
}

func TestDecoderDoesNotMutatePayload(t *testing.T) {
	input := map[string]any{"sorters": "Price asc"}
	decoder := NewDecoder[tableState](WithPreHook[tableState](sorterShorthandPreHook))
	if _, err := decoder.Decode(Context{Key: "Table"}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if input["sorters"] != "Price asc" {
		t.Fatalf("expected payload untouched, got %#v", input)
	}
}

func TestDecoderUseNumber(t *testing.T) {
	decoder := NewDecoder[map[string]any](WithUseNumber[map[string]any]())
	result, err := decoder.Decode(Context{Key: "Chart"}, map[string]any{"zoom": 1.5})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := result["zoom"].(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", result["zoom"])
	}
}

func buildOptions(tc decodeCase) []DecoderOption[tableState] {
	options := []DecoderOption[tableState]{}

	for _, optName := range tc.Options {
		switch optName {
		case "use_number":
			options = append(options, WithUseNumber[tableState]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[tableState]())
		}
	}

	for _, hookName := range tc.PreHooks {
		switch hookName {
		case "sorter_shorthand":
			options = append(options, WithPreHook[tableState](sorterShorthandPreHook))
		}
	}

	for _, hookName := range tc.PostHooks {
		switch hookName {
		case "ensure_tag":
			options = append(options, WithPostHook[tableState](ensureTagPostHook))
		}
	}

	if tc.CustomDecoder != "" {
		switch tc.CustomDecoder {
		case "raw_string":
			options = append(options, WithCustomDecoder[tableState](rawStringDecoder))
		}
	}

	return options
}

func sorterShorthandPreHook(_ Context, payload map[string]any) (map[string]any, error) {
	value, ok := payload["sorters"].(string)
	if !ok || value == "" {
		return payload, nil
	}

	parts := strings.Fields(value)
	if len(parts) != 2 || (parts[1] != "asc" && parts[1] != "desc") {
		return nil, fmt.Errorf("invalid sorter shorthand %q", value)
	}

	payload["sorters"] = []any{map[string]any{
		"name":       parts[0],
		"descending": parts[1] == "desc",
	}}
	return payload, nil
}

func ensureTagPostHook(ctx Context, state *tableState) error {
	if state == nil {
		return errors.New("state is nil")
	}
	if len(state.Tags) > 0 {
		return nil
	}
	state.Tags = []string{fmt.Sprintf("%s:%s", ctx.ViewID, ctx.Key)}
	return nil
}

func rawStringDecoder(ctx Context, payload map[string]any) (tableState, error) {
	var zero tableState
	raw, ok := payload["raw"].(string)
	if !ok || raw == "" {
		return zero, fmt.Errorf("missing raw state for key %q", ctx.Key)
	}
	var out tableState
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return zero, err
	}
	return out, nil
}

type tableState struct {
	Sorters []sorter `json:"sorters,omitempty"`
	Page    int      `json:"page,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type sorter struct {
	Name       string `json:"name"`
	Descending bool   `json:"descending"`
}
