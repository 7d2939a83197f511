package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the rule engine counters on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	// Batch metrics
	PackagesTotal *prometheus.CounterVec

	// Privileged channel metrics
	CommandsTotal *prometheus.CounterVec

	// Rule metrics
	RulesApplied *prometheus.CounterVec
}

// New returns a Registry with every collector registered.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.PackagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ifw",
		Subsystem: "batch",
		Name:      "packages_total",
		Help:      "Packages processed by batch operations",
	}, []string{"operation", "result"})

	r.CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ifw",
		Subsystem: "privileged",
		Name:      "commands_total",
		Help:      "Privileged commands issued",
	}, []string{"success"})

	r.RulesApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ifw",
		Subsystem: "engine",
		Name:      "apply_total",
		Help:      "Apply passes run by the blocker engine",
	}, []string{"mode"})

	r.reg.MustRegister(r.PackagesTotal, r.CommandsTotal, r.RulesApplied)
	return r
}

// ObservePackage counts one package processed by a batch operation.
func (r *Registry) ObservePackage(operation string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.PackagesTotal.WithLabelValues(operation, result).Inc()
}

// ObserveCommand counts one privileged command.
func (r *Registry) ObserveCommand(success bool) {
	r.CommandsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// ObserveApply counts one apply pass; enforce selects "enforce" or "revert".
func (r *Registry) ObserveApply(enforce bool) {
	mode := "revert"
	if enforce {
		mode = "enforce"
	}
	r.RulesApplied.WithLabelValues(mode).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes all metrics in text exposition format to path, for
// pickup by a node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
