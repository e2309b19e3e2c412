package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonDB                   = "db"
	JobReasonUnknown              = "unknown"
)

// RenewalMetrics exposes renewal sweep health on the Prometheus registry.
type RenewalMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	renewed  *prometheus.CounterVec
}

var (
	renewalMetricsOnce sync.Once
	renewalMetrics     *RenewalMetrics
)

// Renewal returns the process-wide renewal metrics registered on the
// default Prometheus registerer.
func Renewal(cfg Config) *RenewalMetrics {
	renewalMetricsOnce.Do(func() {
		renewalMetrics = NewRenewalMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return renewalMetrics
}

func NewRenewalMetrics(registerer prometheus.Registerer, cfg Config) *RenewalMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName(cfg),
		"env":     environment,
	}

	m := &RenewalMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reviewmeter_renewal_job_runs_total",
			Help:        "Renewal sweep runs by job.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "reviewmeter_renewal_job_duration_seconds",
			Help:        "Renewal sweep latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: constLabels,
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reviewmeter_renewal_job_errors_total",
			Help:        "Renewal sweep errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		renewed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reviewmeter_subscriptions_renewed_total",
			Help:        "Subscriptions whose usage was reset by renewal.",
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	for _, collector := range []prometheus.Collector{m.runs, m.duration, m.errors, m.renewed} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

func (m *RenewalMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *RenewalMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *RenewalMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *RenewalMetrics) AddRenewed(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.renewed.WithLabelValues(job).Add(float64(count))
}

// ClassifyJobReason maps background job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return JobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return JobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return JobReasonUniqueViolation
	case isDBError(err):
		return JobReasonDB
	default:
		return JobReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
