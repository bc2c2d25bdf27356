package sharder

// Option configures a Manager with optional dependencies.
type Option func(*managerOptions)

// managerOptions holds optional Manager configuration.
type managerOptions struct {
	growth  GrowthPolicy
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
}

// WithGrowthPolicy sets the policy that picks the next shard count when the
// load threshold is crossed.
//
// Parameters:
//   - policy: GrowthPolicy implementation (default: growth.NewDoubling())
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	mgr, err := sharder.NewManager(&cfg, sharder.WithGrowthPolicy(growth.NewStep(8)))
func WithGrowthPolicy(policy GrowthPolicy) Option {
	return func(o *managerOptions) {
		o.growth = policy
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	hooks := &sharder.Hooks{
//	    OnTopologyChanged: func(ctx context.Context, old, new sharder.TopologyInfo) error {
//	        return handleResize(old, new)
//	    },
//	}
//	mgr, err := sharder.NewManager(&cfg, sharder.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *managerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	collector := myPrometheusCollector
//	mgr, err := sharder.NewManager(&cfg, sharder.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *managerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	logger := logging.NewZap(zapLogger)
//	mgr, err := sharder.NewManager(&cfg, sharder.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}
