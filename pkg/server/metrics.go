package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime WebSocket handshakes attempted
	ActiveConnections atomic.Int64 // current live sessions
	FailedAuths       atomic.Int64 // rejected handshakes
	SuccessfulAuths   atomic.Int64 // accepted handshakes
	TotalDisconnects  atomic.Int64 // total session terminations
	SessionsEvicted   atomic.Int64 // prior handles force-closed by a reconnect

	// Message counters
	MessagesBroadcast atomic.Int64 // messages persisted and fanned out
	MessagesRejected  atomic.Int64 // submissions failed at persistence
	FramesDropped     atomic.Int64 // outbound frames dropped on a full buffer

	// Signaling counters
	SignalsRelayed atomic.Int64 // call-setup envelopes forwarded
	SignalsDropped atomic.Int64 // envelopes with no peer to receive them

	// Upload counters
	Uploads atomic.Int64 // media files stored
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	TotalDisconnects  int64 `json:"total_disconnects"`
	SessionsEvicted   int64 `json:"sessions_evicted"`

	MessagesBroadcast int64 `json:"messages_broadcast"`
	MessagesRejected  int64 `json:"messages_rejected"`
	FramesDropped     int64 `json:"frames_dropped"`

	SignalsRelayed int64 `json:"signals_relayed"`
	SignalsDropped int64 `json:"signals_dropped"`

	Uploads int64 `json:"uploads"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		SuccessfulAuths:   m.SuccessfulAuths.Load(),
		FailedAuths:       m.FailedAuths.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		SessionsEvicted:   m.SessionsEvicted.Load(),
		MessagesBroadcast: m.MessagesBroadcast.Load(),
		MessagesRejected:  m.MessagesRejected.Load(),
		FramesDropped:     m.FramesDropped.Load(),
		SignalsRelayed:    m.SignalsRelayed.Load(),
		SignalsDropped:    m.SignalsDropped.Load(),
		Uploads:           m.Uploads.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"messages", s.MessagesBroadcast,
		"signals", s.SignalsRelayed,
		"frames_dropped", s.FramesDropped,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
