package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the TCP front end. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	connectionsActive prometheus.Gauge
	sessionsActive    prometheus.Gauge
	logins            *prometheus.CounterVec
	frames            *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	idleTimeouts      prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stockhub",
			Subsystem: "tcp",
			Name:      "connections_active",
			Help:      "Open client connections, authenticated or not.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stockhub",
			Subsystem: "tcp",
			Name:      "sessions_active",
			Help:      "Authenticated sessions currently registered.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockhub",
			Subsystem: "tcp",
			Name:      "logins_total",
			Help:      "Handshake outcomes.",
		}, []string{"role", "outcome"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockhub",
			Subsystem: "tcp",
			Name:      "frames_total",
			Help:      "Frames handled after login, by action and reply kind.",
		}, []string{"action", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stockhub",
			Subsystem: "tcp",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in the backend per action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		idleTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stockhub",
			Subsystem: "tcp",
			Name:      "idle_timeouts_total",
			Help:      "Connections closed because no frame arrived in time.",
		}),
	}
	reg.MustRegister(
		m.connectionsActive,
		m.sessionsActive,
		m.logins,
		m.frames,
		m.dispatchDuration,
		m.idleTimeouts,
	)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connectionsActive.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connectionsActive.Dec()
	}
}

func (m *Metrics) SessionRegistered() {
	if m != nil {
		m.sessionsActive.Inc()
	}
}

func (m *Metrics) SessionUnregistered() {
	if m != nil {
		m.sessionsActive.Dec()
	}
}

// Login records a handshake outcome such as "success", "rejected", "duplicate" or "malformed".
func (m *Metrics) Login(admin bool, outcome string) {
	if m == nil {
		return
	}
	role := "user"
	if admin {
		role = "admin"
	}
	m.logins.WithLabelValues(role, outcome).Inc()
}

// Frame records one handled frame. outcome is "success", "error" or "malformed".
func (m *Metrics) Frame(action, outcome string) {
	if m != nil {
		m.frames.WithLabelValues(action, outcome).Inc()
	}
}

func (m *Metrics) ObserveDispatch(action string, d time.Duration) {
	if m != nil {
		m.dispatchDuration.WithLabelValues(action).Observe(d.Seconds())
	}
}

func (m *Metrics) IdleTimeout() {
	if m != nil {
		m.idleTimeouts.Inc()
	}
}
