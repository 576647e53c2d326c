package poll

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Handler 处理函数
type Handler interface {
	// ProcResponse is called with the response of every successful query.
	ProcResponse(cmd, resp string)
	// ProcResult is called after every query.
	ProcResult(err error, result *Result)
}

// NopProc implement interface Handler
type NopProc struct{}

// ProcResponse implement interface Handler
func (NopProc) ProcResponse(string, string) {}

// ProcResult implement interface Handler
func (NopProc) ProcResult(error, *Result) {}

// MetricsHandler counts queries and errors per command and exports numeric
// responses as gauges, then hands everything on to Next.
type MetricsHandler struct {
	Next Handler

	queries *prometheus.CounterVec
	errors  *prometheus.CounterVec
	values  *prometheus.GaugeVec
}

// NewMetricsHandler creates a MetricsHandler and registers its collectors
// with reg. A nil next is a NopProc.
func NewMetricsHandler(reg prometheus.Registerer, next Handler) (*MetricsHandler, error) {
	if next == nil {
		next = NopProc{}
	}
	h := &MetricsHandler{
		Next: next,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instrument_poll_queries_total",
			Help: "Queries sent by the poller",
		}, []string{"command"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instrument_poll_errors_total",
			Help: "Queries which failed",
		}, []string{"command"}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "instrument_poll_value",
			Help: "Last numeric response to a query",
		}, []string{"command"}),
	}
	for _, c := range []prometheus.Collector{h.queries, h.errors, h.values} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ProcResponse implement interface Handler
func (sf *MetricsHandler) ProcResponse(cmd, resp string) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64); err == nil {
		sf.values.WithLabelValues(cmd).Set(v)
	}
	sf.Next.ProcResponse(cmd, resp)
}

// ProcResult implement interface Handler
func (sf *MetricsHandler) ProcResult(err error, result *Result) {
	sf.queries.WithLabelValues(result.Command).Inc()
	if err != nil {
		sf.errors.WithLabelValues(result.Command).Inc()
	}
	sf.Next.ProcResult(err, result)
}
