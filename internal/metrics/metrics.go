package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"appointment-scheduler/internal/booking"
)

type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	GRPCRequests    *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec

	BookingsTotal *prometheus.CounterVec
	SlotsCleared  prometheus.Counter

	gatherer prometheus.Gatherer
}

func NewCollector(namespace string, reg Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"method", "path"}),

		GRPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total number of gRPC requests by method and status code.",
		}, []string{"method", "code"}),

		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}, []string{"transport"}),

		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"result"}),

		SlotsCleared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "cleared_total",
			Help:      "Appointments removed by clear-all.",
		}),

		gatherer: reg,
	}
}

// BookingResult maps a Validator.Book error to a metric label.
func BookingResult(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, booking.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, booking.ErrPastDate):
		return "past_date"
	case errors.Is(err, booking.ErrClosedDay):
		return "closed_day"
	case errors.Is(err, booking.ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, booking.ErrMissingDetails):
		return "missing_details"
	default:
		return "error"
	}
}

func (c *Collector) ObserveBooking(err error) {
	c.BookingsTotal.WithLabelValues(BookingResult(err)).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
