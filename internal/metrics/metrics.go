package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketstream"

// Metrics holds the collectors shared by streams and the recorder.
type Metrics struct {
	connectionState *prometheus.GaugeVec
	reconnects      *prometheus.CounterVec
	serverErrors    *prometheus.CounterVec
	framesReceived  *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	queueDrops      *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec

	recorderFlushed *prometheus.CounterVec
	recorderErrors  *prometheus.CounterVec
	recorderDropped *prometheus.CounterVec
}

func newCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer, so New can only be called once per registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Connection state (0=disconnected 1=connecting 2=authenticating 3=connected)",
		}, []string{"stream"}),
		reconnects:      newCounterVec("stream", "reconnects_scheduled_total", "Reconnect attempts scheduled", "stream"),
		serverErrors:    newCounterVec("stream", "server_errors_total", "Error frames received from the server", "stream", "code"),
		framesReceived:  newCounterVec("stream", "records_received_total", "Decoded inbound records by kind", "stream", "kind"),
		decodeErrors:    newCounterVec("stream", "decode_errors_total", "Inbound frames that failed to decode", "stream"),
		queueDrops:      newCounterVec("stream", "queue_drops_total", "Items rejected by a full pending queue", "stream", "queue"),
		handlerFailures: newCounterVec("events", "handler_failures_total", "Event handlers that returned an error or panicked", "stream", "category"),
		recorderFlushed: newCounterVec("recorder", "events_flushed_total", "Events written by a recorder sink", "sink"),
		recorderErrors:  newCounterVec("recorder", "flush_errors_total", "Failed recorder sink flushes", "sink"),
		recorderDropped: newCounterVec("recorder", "events_dropped_total", "Events dropped because the recorder buffer was full", "reason"),
	}

	for _, c := range []prometheus.Collector{
		m.connectionState, m.reconnects, m.serverErrors, m.framesReceived,
		m.decodeErrors, m.queueDrops, m.handlerFailures,
		m.recorderFlushed, m.recorderErrors, m.recorderDropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return m, nil
}

// Handler serves the metrics of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetState records the numeric connection state of stream.
func (m *Metrics) SetState(stream string, state int) {
	if m == nil {
		return
	}
	m.connectionState.WithLabelValues(stream).Set(float64(state))
}

// ReconnectScheduled counts a scheduled reconnect.
func (m *Metrics) ReconnectScheduled(stream string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(stream).Inc()
}

// ServerError counts an error frame by code.
func (m *Metrics) ServerError(stream string, code int) {
	if m == nil {
		return
	}
	m.serverErrors.WithLabelValues(stream, strconv.Itoa(code)).Inc()
}

// RecordReceived counts a decoded record by kind.
func (m *Metrics) RecordReceived(stream, kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(stream, kind).Inc()
}

// DecodeError counts a frame that failed to decode.
func (m *Metrics) DecodeError(stream string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(stream).Inc()
}

// QueueDrop counts an item rejected by a full queue.
func (m *Metrics) QueueDrop(stream, queue string) {
	if m == nil {
		return
	}
	m.queueDrops.WithLabelValues(stream, queue).Inc()
}

// HandlerFailure counts a failed event handler.
func (m *Metrics) HandlerFailure(stream, category string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(stream, category).Inc()
}

// RecorderFlushed counts events written by sink.
func (m *Metrics) RecorderFlushed(sink string, n int) {
	if m == nil {
		return
	}
	m.recorderFlushed.WithLabelValues(sink).Add(float64(n))
}

// RecorderError counts a failed flush on sink.
func (m *Metrics) RecorderError(sink string) {
	if m == nil {
		return
	}
	m.recorderErrors.WithLabelValues(sink).Inc()
}

// RecorderDropped counts events dropped by the recorder.
func (m *Metrics) RecorderDropped(reason string) {
	if m == nil {
		return
	}
	m.recorderDropped.WithLabelValues(reason).Inc()
}
