package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	obsmetrics "github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"go.uber.org/zap"
)

type fakeRenewer struct {
	subscriptiondomain.Service

	mu      sync.Mutex
	batches []int
	errs    []error
	calls   int
}

func (f *fakeRenewer) RenewDue(_ context.Context, _ int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.batches) {
		return 0, nil
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.batches[i], err
}

func newTestScheduler(t *testing.T, renewer *fakeRenewer, registry *prometheus.Registry) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:             zap.NewNop(),
		Clock:           clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		Config:          Config{BatchSize: 2},
		SubscriptionSvc: renewer,
		Metrics: obsmetrics.NewRenewalMetrics(registry, obsmetrics.Config{
			ServiceName: "reviewmeter",
			Environment: "test",
		}),
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestRenewalJobDrainsFullBatches(t *testing.T) {
	registry := prometheus.NewRegistry()
	renewer := &fakeRenewer{batches: []int{2, 2, 1}}
	s := newTestScheduler(t, renewer, registry)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if renewer.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", renewer.calls)
	}

	labels := map[string]string{"service": "reviewmeter", "env": "test", "job": jobRenewal}
	if got := getCounterValue(t, registry, "reviewmeter_subscriptions_renewed_total", labels); got != 5 {
		t.Fatalf("expected 5 renewed, got %v", got)
	}
	if got := getCounterValue(t, registry, "reviewmeter_renewal_job_runs_total", labels); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
}

func TestRenewalJobReportsPartialFailures(t *testing.T) {
	registry := prometheus.NewRegistry()
	failure := errors.New("boom")
	renewer := &fakeRenewer{batches: []int{1}, errs: []error{failure}}
	s := newTestScheduler(t, renewer, registry)

	err := s.RunOnce(context.Background())
	if !errors.Is(err, failure) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}

	errorLabels := map[string]string{
		"service": "reviewmeter",
		"env":     "test",
		"job":     jobRenewal,
		"reason":  obsmetrics.JobReasonUnknown,
	}
	if got := getCounterValue(t, registry, "reviewmeter_renewal_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobTimeoutDoesNotReturnError(t *testing.T) {
	registry := prometheus.NewRegistry()
	s := newTestScheduler(t, &fakeRenewer{}, registry)

	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	errorLabels := map[string]string{
		"service": "reviewmeter",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.JobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "reviewmeter_renewal_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler(t, &fakeRenewer{}, prometheus.NewRegistry())
	s.cfg.Schedule = "not a schedule"
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestProvideConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Schedule != "@every 1h" || cfg.BatchSize != 100 || cfg.JobTimeout != 5*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
