package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
//
// Bind address is :3001 by default — configurable via Config.MetricsAddr.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("duochat_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("duochat_connections_active", "Current live sessions.", "gauge",
		m.ActiveConnections.Load())
	write("duochat_connections_total", "Lifetime WebSocket handshakes attempted.", "counter",
		m.TotalConnections.Load())
	write("duochat_disconnects_total", "Total session terminations.", "counter",
		m.TotalDisconnects.Load())
	write("duochat_sessions_evicted_total", "Prior handles force-closed by a reconnect.", "counter",
		m.SessionsEvicted.Load())

	write("duochat_auth_success_total", "Accepted handshakes.", "counter",
		m.SuccessfulAuths.Load())
	write("duochat_auth_failed_total", "Rejected handshakes.", "counter",
		m.FailedAuths.Load())

	write("duochat_messages_broadcast_total", "Messages persisted and fanned out.", "counter",
		m.MessagesBroadcast.Load())
	write("duochat_messages_rejected_total", "Submissions failed at persistence.", "counter",
		m.MessagesRejected.Load())
	write("duochat_frames_dropped_total", "Outbound frames dropped on a full buffer.", "counter",
		m.FramesDropped.Load())

	write("duochat_signals_relayed_total", "Call-setup envelopes forwarded.", "counter",
		m.SignalsRelayed.Load())
	write("duochat_signals_dropped_total", "Envelopes with no peer to receive them.", "counter",
		m.SignalsDropped.Load())

	write("duochat_uploads_total", "Media files stored.", "counter",
		m.Uploads.Load())
}
