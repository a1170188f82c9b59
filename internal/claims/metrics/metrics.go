package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the claim lifecycle.
type Metrics struct {
	ClaimsCreated     prometheus.Counter
	Transitions       *prometheus.CounterVec
	RejectedMoves     *prometheus.CounterVec
	NumberCollisions  prometheus.Counter
	AccessDenied      *prometheus.CounterVec
	DocumentsUploaded prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the claim metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClaimsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claims_created_total",
			Help: "Claims created",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_claim_transitions_total",
			Help: "Successful claim status transitions by target status",
		}, []string{"status"}),
		RejectedMoves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_claim_transitions_rejected_total",
			Help: "Transitions rejected by the lifecycle table, by current status",
		}, []string{"from"}),
		NumberCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claim_number_collisions_total",
			Help: "Generated claim or policy numbers that were already taken",
		}),
		AccessDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimdesk_access_denied_total",
			Help: "Mutations denied by the access evaluator, by action",
		}, []string{"action"}),
		DocumentsUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "claimdesk_claim_documents_uploaded_total",
			Help: "Claim documents stored",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.ClaimsCreated.Inc()
	}
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementRejected(from string) {
	if m != nil {
		m.RejectedMoves.WithLabelValues(from).Inc()
	}
}

func (m *Metrics) IncrementCollision() {
	if m != nil {
		m.NumberCollisions.Inc()
	}
}

func (m *Metrics) IncrementDenied(action string) {
	if m != nil {
		m.AccessDenied.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncrementUploaded() {
	if m != nil {
		m.DocumentsUploaded.Inc()
	}
}
