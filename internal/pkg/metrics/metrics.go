package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jake-scott/bluestar-bridge/version"
)

var (
	vendorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluestar_vendor_requests_total",
			Help: "Requests sent to the Bluestar cloud API",
		},
		[]string{"method", "code"},
	)
	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluestar_logins_total",
			Help: "Login attempts against the Bluestar cloud API",
		},
		[]string{"result"},
	)
	sessionValid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bluestar_session_valid",
			Help: "Session token validity (1=valid, 0=invalid)",
		},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluestar_commands_total",
			Help: "Device commands by delivery path and outcome",
		},
		[]string{"transport", "result"},
	)
	shadowConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bluestar_shadow_connected",
			Help: "IoT shadow session state (1=connected, 0=disconnected)",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluestar_http_requests_total",
			Help: "Requests served by the control API",
		},
		[]string{"method", "route", "code"},
	)
	httpPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bluestar_http_panics_total",
			Help: "Panics recovered while serving the control API",
		},
	)
)

// Collectors returns every collector owned by the bridge.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		vendorRequests,
		logins,
		sessionValid,
		commands,
		shadowConnected,
		httpRequests,
		httpPanics,
	}
}

// NewRegistry builds a registry holding the bridge collectors and a build info gauge.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	for _, c := range Collectors() {
		registry.MustRegister(c)
	}

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "bluestar_build_info",
		Help:        "Build information",
		ConstLabels: prometheus.Labels{"version": version.Version},
	}, func() float64 { return 1 }))

	return registry
}

// Handler exposes the registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func VendorRequest(method string, statusCode int) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	vendorRequests.WithLabelValues(method, code).Inc()
}

func Login(ok bool) {
	logins.WithLabelValues(result(ok)).Inc()
	SessionValid(ok)
}

func SessionValid(ok bool) {
	sessionValid.Set(boolGauge(ok))
}

func Command(transport string, ok bool) {
	commands.WithLabelValues(transport, result(ok)).Inc()
}

func ShadowConnected(ok bool) {
	shadowConnected.Set(boolGauge(ok))
}

// HTTPRequest counts a served request by its route template, keeping device
// ids out of the label set
func HTTPRequest(method string, route string, statusCode int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
}

func HTTPPanic() {
	httpPanics.Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func boolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
