package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for tenant resolution and provisioning.
type Metrics struct {
	TenantsProvisioned    prometheus.Counter
	ProvisioningFailures  *prometheus.CounterVec
	Compensations         *prometheus.CounterVec
	PartitionCollisions   prometheus.Counter
	RegistrationsRejected prometheus.Counter
	ResolveDuration       prometheus.Histogram
	ResolveCacheHits      *prometheus.CounterVec
	ApproveDuration       prometheus.Histogram
}

// New registers the tenant metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the tenant metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TenantsProvisioned: f.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_tenants_provisioned_total",
			Help: "Total number of tenants provisioned from approved registrations",
		}),
		ProvisioningFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_provisioning_failures_total",
			Help: "Approvals that failed, by the step that failed",
		}, []string{"step"}),
		Compensations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_provisioning_compensations_total",
			Help: "Compensating actions run after a failed approval step",
		}, []string{"action"}),
		PartitionCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_partition_collisions_total",
			Help: "Partition id or tenant code collisions retried during provisioning",
		}),
		RegistrationsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_registrations_rejected_total",
			Help: "Registration requests rejected by an operator",
		}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimdesk_resolve_tenant_duration_seconds",
			Help:    "Duration of host to partition resolution (request critical path)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		ResolveCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_resolve_cache_total",
			Help: "Domain cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		ApproveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimdesk_approve_registration_duration_seconds",
			Help:    "Duration of registration approval including provisioning",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncrementProvisioned() {
	m.TenantsProvisioned.Inc()
}

func (m *Metrics) IncrementFailure(step string) {
	m.ProvisioningFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementCompensation(action string) {
	m.Compensations.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementCollision() {
	m.PartitionCollisions.Inc()
}

func (m *Metrics) IncrementRejected() {
	m.RegistrationsRejected.Inc()
}

func (m *Metrics) RecordCache(result string) {
	m.ResolveCacheHits.WithLabelValues(result).Inc()
}

// ObserveResolve records the duration of a Resolve call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

// ObserveApprove records the duration of an approval.
func (m *Metrics) ObserveApprove(start time.Time) {
	m.ApproveDuration.Observe(time.Since(start).Seconds())
}
