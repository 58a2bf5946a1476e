// Package metrics exposes Prometheus counters for the netcode.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the netcode metrics
type Config struct {
	// Namespace is the metrics namespace (default: "fightsquares").
	Namespace string

	// ConstLabels are added to every metric, e.g. the strategy in use.
	ConstLabels prometheus.Labels

	// Registry receives the metrics. Default: a fresh registry, so several
	// synchronizers in one process (tests, two local peers) do not collide.
	Registry *prometheus.Registry
}

// Option configures the netcode metrics
type Option func(*Config)

// WithNamespace sets the metrics namespace
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Netcode holds the counters updated by the synchronizers.
// A nil *Netcode is valid and records nothing.
type Netcode struct {
	registry *prometheus.Registry

	framesAdvanced    prometheus.Counter
	framesResimulated prometheus.Counter
	rollbacks         prometheus.Counter
	shortCircuits     prometheus.Counter
	lateInputs        prometheus.Counter
	desyncs           prometheus.Counter
	decodeErrors      prometheus.Counter
	echoesDropped     prometheus.Counter
	currentFrame      prometheus.Gauge
	remoteLead        prometheus.Gauge
}

// New registers the netcode metrics
func New(opts ...Option) *Netcode {
	cfg := Config{Namespace: "fightsquares"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "netcode",
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "netcode",
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}

	return &Netcode{
		registry:          cfg.Registry,
		framesAdvanced:    counter("frames_advanced_total", "Frames simulated by the local tick"),
		framesResimulated: counter("frames_resimulated_total", "Frames recomputed after a late correction"),
		rollbacks:         counter("rollbacks_total", "Late remote inputs that changed history"),
		shortCircuits:     counter("resimulation_short_circuits_total", "Resimulations stopped early on an unchanged state"),
		lateInputs:        counter("late_inputs_total", "Remote inputs received after their frame was simulated"),
		desyncs:           counter("desyncs_total", "Remote inputs for frames the local tick has not reached"),
		decodeErrors:      counter("decode_errors_total", "Malformed messages skipped on the inbound stream"),
		echoesDropped:     counter("echoes_dropped_total", "Inbound messages tagged with the local player"),
		currentFrame:      gauge("current_frame", "Frame the local tick is working on"),
		remoteLead:        gauge("remote_lead_frames", "How far ahead the remote peer was at the last desync"),
	}
}

// Registry returns the registry holding the metrics, for serving /metrics
func (m *Netcode) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FrameAdvanced records one local tick reaching frame
func (m *Netcode) FrameAdvanced(frame int) {
	if m == nil {
		return
	}
	m.framesAdvanced.Inc()
	m.currentFrame.Set(float64(frame))
}

// LateInput records a remote input for an already simulated frame
func (m *Netcode) LateInput() {
	if m == nil {
		return
	}
	m.lateInputs.Inc()
}

// Rollback records a resimulation after a correction
func (m *Netcode) Rollback(recomputed int, shortCircuited bool) {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
	m.framesResimulated.Add(float64(recomputed))
	if shortCircuited {
		m.shortCircuits.Inc()
	}
}

// Desync records the remote peer running ahead by lead frames
func (m *Netcode) Desync(lead int) {
	if m == nil {
		return
	}
	m.desyncs.Inc()
	m.remoteLead.Set(float64(lead))
}

// DecodeError records a skipped malformed message
func (m *Netcode) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// EchoDropped records a dropped self-originated message
func (m *Netcode) EchoDropped() {
	if m == nil {
		return
	}
	m.echoesDropped.Inc()
}
