package viewstate

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-viewstate/pkg/activity"
)

// Option configures a Controller.
type Option func(*controllerConfig)

type controllerConfig struct {
	viewID         string
	extensions     []any
	util           StateUtil
	cache          *DeltaCache
	logger         *zap.SugaredLogger
	logLevel       string
	activityHooks  activity.Hooks
	activityConfig *activity.Config
	applyOnce      bool
	engine         string
	evaluator      Evaluator
	functions      *FunctionRegistry
	rules          []Rule
	handlers       map[Capability]Handler
}

func defaultControllerConfig() controllerConfig {
	return controllerConfig{
		applyOnce: true,
		handlers:  map[Capability]Handler{},
	}
}

func (cfg controllerConfig) activityConfigOrDefault() activity.Config {
	if cfg.activityConfig != nil {
		return *cfg.activityConfig
	}
	return activity.Config{Enabled: true}
}

// WithViewID sets the view namespace stripped from control IDs to form
// control state keys.
func WithViewID(viewID string) Option {
	return func(cfg *controllerConfig) {
		cfg.viewID = viewID
	}
}

// WithExtensions registers hosting-controller extensions. Each value may
// implement any of the hook interfaces.
func WithExtensions(exts ...any) Option {
	return func(cfg *controllerConfig) {
		for _, ext := range exts {
			if ext != nil {
				cfg.extensions = append(cfg.extensions, ext)
			}
		}
	}
}

// WithStateUtil replaces DefaultStateUtil for delta-capable controls.
func WithStateUtil(util StateUtil) Option {
	return func(cfg *controllerConfig) {
		cfg.util = util
	}
}

// WithDeltaCache shares cache with the controller.
func WithDeltaCache(cache *DeltaCache) Option {
	return func(cfg *controllerConfig) {
		cfg.cache = cache
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(cfg *controllerConfig) {
		cfg.logger = logger
	}
}

// WithApplyInitialStateOnly sets the apply-once default. Extensions
// implementing InitialStateOnlyPolicy take precedence.
func WithApplyInitialStateOnly(enabled bool) Option {
	return func(cfg *controllerConfig) {
		cfg.applyOnce = enabled
	}
}

// WithEngine selects the rule engine by name: expr, cel or js.
func WithEngine(engine string) Option {
	return func(cfg *controllerConfig) {
		cfg.engine = engine
	}
}

// WithEvaluator configures the evaluator capability rules are compiled with.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *controllerConfig) {
		cfg.evaluator = e
	}
}

// WithFunctionRegistry exposes registry to rule expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *controllerConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for rule expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *controllerConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithRules registers capability rules.
func WithRules(rules ...Rule) Option {
	return func(cfg *controllerConfig) {
		cfg.rules = append(cfg.rules, rules...)
	}
}

// WithHandler replaces the built-in handler of capability.
func WithHandler(capability Capability, handler Handler) Option {
	return func(cfg *controllerConfig) {
		cfg.handlers[capability] = handler
	}
}

// WithConfig applies a file based Config. Options given after it win.
func WithConfig(config Config) Option {
	return func(cfg *controllerConfig) {
		if config.ViewID != "" {
			cfg.viewID = config.ViewID
		}
		if config.ApplyInitialStateOnly != nil {
			cfg.applyOnce = *config.ApplyInitialStateOnly
		}
		if config.Engine != "" {
			cfg.engine = config.Engine
		}
		if config.LogLevel != "" {
			cfg.logLevel = config.LogLevel
		}
		if config.Activity != nil {
			activityConfig := *config.Activity
			cfg.activityConfig = &activityConfig
		}
	}
}
