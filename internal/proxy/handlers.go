package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/raaihank/iron-mask/internal/metrics"
	"github.com/raaihank/iron-mask/internal/relay"
	"github.com/raaihank/iron-mask/internal/websocket"
	"go.uber.org/zap"
)

// handleMask streams the request body through the masking relay to the target
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())

	s.metrics.RelaySessionsActive.Inc()
	sess := s.relay.Serve(w, r, requestID)
	s.metrics.RelaySessionsActive.Dec()

	s.metrics.RecordSession(metrics.SessionSummary{
		State:       sess.State().String(),
		Reason:      sess.Reason(),
		Duration:    sess.Duration(),
		BytesIn:     sess.BytesIn(),
		BytesMasked: sess.BytesMasked(),
		BytesOut:    sess.BytesOut(),
		Units:       sess.Units(),
		Findings:    sess.Findings(),
	})

	if s.wsHub != nil {
		s.wsHub.BroadcastEvent(sessionCompletedEvent(sess, getClientIP(r)))
	}
}

// handleMaskJSON masks a JSON document with the structured masker and
// returns it to the caller. Nothing is forwarded to the target.
func (s *Server) handleMaskJSON(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithRequestID(getRequestID(r.Context()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.metrics.RecordStructuredMask("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.metrics.RecordStructuredMask("read_error")
		log.Warn("Failed to read request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	masked, err := s.detector.MaskJSON(body, s.config.Masking)
	if err != nil {
		s.metrics.RecordStructuredMask("invalid")
		log.Debug("Rejected structured mask request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON document")
		return
	}

	s.metrics.RecordStructuredMask("ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(masked)
}

// handleHealthz is the plain liveness probe
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"name":              "iron-mask",
		"version":           s.version,
		"target":            s.config.Target.URL,
		"detectors":         s.detector.GetEnabledRules(),
		"max_body_bytes":    s.config.Server.MaxBodyBytes,
		"rate_limit":        s.limiter.Enabled(),
		"websocket_enabled": s.wsHub != nil,
	}
	if s.wsHub != nil {
		info["websocket"] = s.wsHub.GetStats()
	}
	writeJSON(w, http.StatusOK, info)
}

func sessionCompletedEvent(sess *relay.Session, clientIP string) websocket.Event {
	return websocket.Event{
		Type:      websocket.EventTypeSessionCompleted,
		Timestamp: time.Now(),
		RequestID: sess.ID,
		Data: websocket.SessionEvent{
			RequestID:     sess.ID,
			State:         sess.State().String(),
			Reason:        sess.Reason(),
			StatusCode:    sess.StatusCode(),
			ClientIP:      clientIP,
			Findings:      sess.Findings(),
			TotalFindings: sess.TotalFindings(),
			BytesIn:       sess.BytesIn(),
			BytesOut:      sess.BytesOut(),
			DurationMS:    float64(sess.Duration().Microseconds()) / 1000,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
