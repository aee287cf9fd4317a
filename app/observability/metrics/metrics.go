package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal   metric.Int64Counter
	LoginRequestsTotal      metric.Int64Counter
	LoginBlockedUnverified  metric.Int64Counter
	CodesIssuedTotal        metric.Int64Counter
	CodesVerifiedTotal      metric.Int64Counter
	CodeVerifyFailuresTotal metric.Int64Counter
	TaskOperationsTotal     metric.Int64Counter
	DbQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("kanban-tracker")
		m := &AppMetrics{}

		var err error
		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.LoginRequestsTotal, err = meter.Int64Counter(
			"login_requests_total",
			metric.WithDescription("Total number of login attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_requests_total: %v", err)
		}

		m.LoginBlockedUnverified, err = meter.Int64Counter(
			"login_blocked_unverified_total",
			metric.WithDescription("Logins rejected because the email is not verified"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_blocked_unverified_total: %v", err)
		}

		m.CodesIssuedTotal, err = meter.Int64Counter(
			"verification_codes_issued_total",
			metric.WithDescription("Verification codes issued"),
			metric.WithUnit("{code}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create verification_codes_issued_total: %v", err)
		}

		m.CodesVerifiedTotal, err = meter.Int64Counter(
			"verification_codes_verified_total",
			metric.WithDescription("Verification codes successfully consumed"),
			metric.WithUnit("{code}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create verification_codes_verified_total: %v", err)
		}

		m.CodeVerifyFailuresTotal, err = meter.Int64Counter(
			"verification_code_failures_total",
			metric.WithDescription("Verification attempts rejected as invalid or expired"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create verification_code_failures_total: %v", err)
		}

		m.TaskOperationsTotal, err = meter.Int64Counter(
			"task_operations_total",
			metric.WithDescription("Task CRUD operations completed"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create task_operations_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
