package viewstate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseConfig(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr string
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:  "empty document",
			input: "  \n",
			check: func(t *testing.T, cfg Config) {
				if cfg.ViewID != "" || cfg.ApplyInitialStateOnly != nil || cfg.Activity != nil {
					t.Fatalf("expected zero config, got %+v", cfg)
				}
			},
		},
		{
			name: "full document",
			input: `
view_id: app--main
apply_initial_state_only: false
engine: cel
log_level: debug
activity:
  enabled: true
  channel: audit
  verbs: [viewstate.variant.activated]
`,
			check: func(t *testing.T, cfg Config) {
				if cfg.ViewID != "app--main" || cfg.Engine != "cel" || cfg.LogLevel != "debug" {
					t.Fatalf("unexpected config %+v", cfg)
				}
				if cfg.ApplyInitialStateOnly == nil || *cfg.ApplyInitialStateOnly {
					t.Fatalf("expected apply_initial_state_only false, got %v", cfg.ApplyInitialStateOnly)
				}
				if cfg.Activity == nil || !cfg.Activity.Enabled || cfg.Activity.Channel != "audit" || len(cfg.Activity.Verbs) != 1 {
					t.Fatalf("unexpected activity config %+v", cfg.Activity)
				}
			},
		},
		{name: "unknown field", input: "view: app\n", wantErr: "field view not found"},
		{name: "unknown engine", input: "engine: lua\n", wantErr: `unknown engine "lua"`},
		{name: "unknown level", input: "log_level: loud\n", wantErr: "loud"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tc.input))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestLoadConfigAppliesToController(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewstate.yaml")
	data := "view_id: app--main\napply_initial_state_only: false\nlog_level: error\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tabs := &choiceControl{id: "app--main--Tabs"}
	c, err := NewController(WithConfig(cfg), WithExtensions(&host{controls: []Control{tabs}, applyOnce: boolPtr(false)}))
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if c.ViewID() != "app--main" {
		t.Fatalf("expected view id from config, got %q", c.ViewID())
	}
	for _, key := range []string{"a", "b"} {
		if err := c.ApplyViewState(context.Background(), Snapshot{"Tabs": map[string]any{"selectedKey": key}}, NavigationParameter{}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if tabs.selected != "b" {
		t.Fatalf("expected repeated apply, got %q", tabs.selected)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.Desugar().Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected debug disabled at warn level")
	}
	if _, err := NewLogger("loud"); err == nil {
		t.Fatalf("expected invalid level rejected")
	}
}
