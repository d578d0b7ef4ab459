package video

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pipeline activity. A nil *Metrics records nothing.
type Metrics struct {
	buffers      *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	starved      *prometheus.CounterVec
	discarded    *prometheus.CounterVec
	lockErrors   *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	grab         *prometheus.HistogramVec
}

// NewMetrics creates the pipeline collectors and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		buffers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picam_buffers_total",
			Help: "Buffers completed by the camera, by port.",
		}, []string{"port"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picam_decode_errors_total",
			Help: "Completed buffers that could not be decoded into a request.",
		}, []string{"port"}),
		starved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picam_pool_starved_total",
			Help: "Times a port could not be refilled because its pool was empty.",
		}, []string{"port"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picam_discarded_total",
			Help: "Completed buffers dropped without a request or a pool.",
		}, []string{"port"}),
		lockErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picam_buffer_lock_errors_total",
			Help: "Completed buffers whose memory could not be locked.",
		}, []string{"port"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picam_grab_timeouts_total",
			Help: "Grabs that timed out, by kind.",
		}, []string{"kind"}),
		grab: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "picam_grab_seconds",
			Help:    "Time spent blocked in a grab, by kind.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.buffers, m.decodeErrors, m.starved, m.discarded, m.lockErrors, m.timeouts, m.grab)
	}
	return m
}

func (m *Metrics) buffer(port string) {
	if m != nil {
		m.buffers.WithLabelValues(port).Inc()
	}
}

func (m *Metrics) decodeError(port string) {
	if m != nil {
		m.decodeErrors.WithLabelValues(port).Inc()
	}
}

func (m *Metrics) starve(port string) {
	if m != nil {
		m.starved.WithLabelValues(port).Inc()
	}
}

func (m *Metrics) discard(port string) {
	if m != nil {
		m.discarded.WithLabelValues(port).Inc()
	}
}

func (m *Metrics) lockError(port string) {
	if m != nil {
		m.lockErrors.WithLabelValues(port).Inc()
	}
}

// observeGrab records a finished grab of kind started at start.
func (m *Metrics) observeGrab(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.grab.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err == ErrTimeout {
		m.timeouts.WithLabelValues(kind).Inc()
	}
}
