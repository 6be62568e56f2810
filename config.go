package viewstate

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-viewstate/pkg/activity"
)

// Config is the file representation of the controller settings.
//
//	view_id: app--main
//	apply_initial_state_only: false
//	engine: cel
//	log_level: debug
//	activity:
//	  enabled: true
//	  channel: viewstate
//	  verbs: [viewstate.applied]
type Config struct {
	ViewID                string           `yaml:"view_id"`
	ApplyInitialStateOnly *bool            `yaml:"apply_initial_state_only"`
	Engine                string           `yaml:"engine"`
	LogLevel              string           `yaml:"log_level"`
	Activity              *activity.Config `yaml:"activity"`
}

// Validate reports unknown engines and log levels.
func (c Config) Validate() error {
	var errs []error
	switch c.Engine {
	case "", "expr", "cel", "js":
	default:
		errs = append(errs, fmt.Errorf("viewstate: config: unknown engine %q", c.Engine))
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("viewstate: config: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ParseConfig decodes and validates a YAML document. Unknown fields are
// rejected.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("viewstate: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("viewstate: read config %q: %w", path, err)
	}
	return ParseConfig(data)
}

// NewLogger builds a production JSON logger at level.
func NewLogger(level string) (*zap.SugaredLogger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("viewstate: logger: %w", err)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parsed)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("viewstate: logger: %w", err)
	}
	return logger.Sugar(), nil
}
