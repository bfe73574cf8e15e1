package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for registry operations.
type Metrics struct {
	CredentialsIssued      prometheus.Counter
	CredentialsRevoked     prometheus.Counter
	InstitutionsAuthorized prometheus.Counter
	InstitutionsRevoked    prometheus.Counter
	CredentialCount        prometheus.Gauge
	OperationsRejected     *prometheus.CounterVec
	OperationLatency       *prometheus.HistogramVec
}

// New registers registry collectors with the default Prometheus registerer.
// It must be called once per process.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers registry collectors with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "edureg_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "edureg_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		InstitutionsAuthorized: factory.NewCounter(prometheus.CounterOpts{
			Name: "edureg_institutions_authorized_total",
			Help: "Total number of institution authorizations granted",
		}),
		InstitutionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "edureg_institutions_revoked_total",
			Help: "Total number of institution authorizations removed",
		}),
		CredentialCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "edureg_credential_count",
			Help: "Last assigned credential ID",
		}),
		OperationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edureg_operations_rejected_total",
			Help: "Total number of rejected registry operations, labeled by operation and reason",
		}, []string{"operation", "reason"}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edureg_operation_latency_seconds",
			Help:    "Latency of registry operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCredentialsIssued() {
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncrementCredentialsRevoked() {
	m.CredentialsRevoked.Inc()
}

func (m *Metrics) IncrementInstitutionsAuthorized() {
	m.InstitutionsAuthorized.Inc()
}

func (m *Metrics) IncrementInstitutionsRevoked() {
	m.InstitutionsRevoked.Inc()
}

func (m *Metrics) SetCredentialCount(count uint64) {
	m.CredentialCount.Set(float64(count))
}

func (m *Metrics) IncrementRejected(operation, reason string) {
	m.OperationsRejected.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) ObserveOperationLatency(operation string, seconds float64) {
	m.OperationLatency.WithLabelValues(operation).Observe(seconds)
}
