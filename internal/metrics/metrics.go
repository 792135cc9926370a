package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/endlessh-go/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges for the tarpit event loop.
var (
	Connects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "endlessh_connects_total",
		Help: "Total connections accepted.",
	})
	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "endlessh_bytes_sent_total",
		Help: "Total bytes written to tarpitted clients.",
	})
	ClientSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "endlessh_client_seconds_total",
		Help: "Total seconds clients have spent connected, across closed clients.",
	})
	AcceptErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "endlessh_accept_errors_total",
		Help: "Accept-phase errors by classification.",
	}, []string{"action"})
	ActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "endlessh_active_clients",
		Help: "Current number of enrolled (tarpitted) clients.",
	})
	MaxClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "endlessh_max_clients",
		Help: "Effective MaxClients limit as of startup or the latest self-clamp; a SIGHUP reload does not update it.",
	})
	Reloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "endlessh_reloads_total",
		Help: "Total SIGHUP-triggered configuration reloads.",
	})
	Rebinds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "endlessh_rebinds_total",
		Help: "Total listener rebinds triggered by a reload that changed port or bind family.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Accept-error action label values, bounding AcceptErrors cardinality.
const (
	ActionFatal = "fatal"
	ActionWarn  = "warn"
	ActionClamp = "clamp"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters so the periodic metrics log line can report
// totals without scraping Prometheus in-process. The SIGUSR1 TOTALS line
// does not use them; it reads the event loop's own tarpit.Stats.
var (
	localConnects  uint64
	localBytesSent uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	Connects  uint64
	BytesSent uint64
}

// Snap returns the current local counter values.
func Snap() Snapshot {
	return Snapshot{
		Connects:  atomic.LoadUint64(&localConnects),
		BytesSent: atomic.LoadUint64(&localBytesSent),
	}
}

// IncConnect records one accepted connection.
func IncConnect() {
	Connects.Inc()
	atomic.AddUint64(&localConnects, 1)
}

// AddBytesSent records n bytes written to a client.
func AddBytesSent(n int64) {
	BytesSent.Add(float64(n))
	atomic.AddUint64(&localBytesSent, uint64(n))
}

// AddClientSeconds folds a closed client's connected lifetime in, in
// whole-millisecond resolution.
func AddClientSeconds(elapsedMS int64) {
	ClientSeconds.Add(float64(elapsedMS) / 1000)
}

// IncAcceptError records an accept-phase error by the action the loop took.
func IncAcceptError(action string) {
	AcceptErrors.WithLabelValues(action).Inc()
}

// SetActiveClients sets the current FIFO length gauge.
func SetActiveClients(n int) { ActiveClients.Set(float64(n)) }

// SetMaxClients sets the current effective MaxClients gauge, so a self-clamp
// triggered by EMFILE/ENFILE is visible to an operator without grepping logs.
func SetMaxClients(n int) { MaxClients.Set(float64(n)) }

// IncReload records a config reload.
func IncReload() { Reloads.Inc() }

// IncRebind records a listener rebind triggered by a reload.
func IncRebind() { Rebinds.Inc() }

// InitBuildInfo sets the build info gauge and pre-registers the accept-error
// label series so the first error doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ActionFatal, ActionWarn, ActionClamp} {
		AcceptErrors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
