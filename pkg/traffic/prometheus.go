package traffic

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"
	"trafficwaker/pkg/metrics"
)

const (
	defaultQueryTimeout = 5 * time.Second
	// rate() yields requests per second
	defaultRateScale = 60
)

// DefaultQuery builds the ingress request-rate query for a service
func DefaultQuery(service string, window time.Duration) string {
	if window <= 0 {
		window = 2 * time.Minute
	}
	return fmt.Sprintf(`sum(rate(nginx_ingress_controller_requests{service=%q}[%s]))`,
		service, model.Duration(window))
}

// Options Prometheus traffic source settings
type Options struct {
	URL     string
	Query   string
	Timeout time.Duration
	// RateScale multiplies the query result to get requests per minute
	RateScale float64
}

// PrometheusSource reads the request rate of a service from Prometheus
type PrometheusSource struct {
	client    v1.API
	query     string
	timeout   time.Duration
	rateScale float64
	metrics   *metrics.Metrics
}

// NewPrometheusSource creates a Prometheus-backed traffic source
func NewPrometheusSource(opts Options, m *metrics.Metrics) (*PrometheusSource, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("prometheus query is required")
	}
	client, err := api.NewClient(api.Config{
		Address: opts.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultQueryTimeout
	}
	if opts.RateScale <= 0 {
		opts.RateScale = defaultRateScale
	}

	return &PrometheusSource{
		client:    v1.NewAPI(client),
		query:     opts.Query,
		timeout:   opts.Timeout,
		rateScale: opts.RateScale,
		metrics:   m,
	}, nil
}

// CurrentRate returns requests per minute; a failed query reads as zero
func (p *PrometheusSource) CurrentRate(ctx context.Context) float64 {
	rate, err := p.Query(ctx)
	if err != nil {
		p.metrics.Failure(metrics.FailureMetrics)
		logger.WarnCtx(ctx, "traffic query failed, treating as zero traffic: %v", err)
		return 0
	}
	return rate
}

// Query runs the rate query. Failures wrap ErrMetricsUnavailable;
// an empty result is a genuine zero.
func (p *PrometheusSource) Query(ctx context.Context) (float64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, warnings, err := p.client.Query(queryCtx, p.query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrMetricsUnavailable, err)
	}
	if len(warnings) > 0 {
		logger.WarnCtx(ctx, "prometheus warnings: %v", warnings)
	}

	var value float64
	switch v := result.(type) {
	case model.Vector:
		if len(v) == 0 {
			logger.DebugCtx(ctx, "no traffic samples for query: %s", p.query)
			return 0, nil
		}
		// only the first series is consumed; the query is expected to aggregate
		value = float64(v[0].Value)
	case *model.Scalar:
		value = float64(v.Value)
	default:
		return 0, fmt.Errorf("%w: unexpected result type %s", interfaces.ErrMetricsUnavailable, result.Type())
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		logger.DebugCtx(ctx, "discarding non-finite or negative traffic sample %v", value)
		return 0, nil
	}
	return value * p.rateScale, nil
}
