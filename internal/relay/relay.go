package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/raaihank/iron-mask/internal/logger"
	"github.com/raaihank/iron-mask/internal/privacy"
	"go.uber.org/zap"
)

// ErrUpstream marks failures reaching or reading from the upstream target
var ErrUpstream = errors.New("upstream request failed")

// hop-by-hop headers are never copied from the upstream response
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// requestIDHeader is set by the proxy before the relay runs and sent
// upstream; an echo from the target must not duplicate it.
const requestIDHeader = "X-Request-ID"

// Masker redacts a single text unit
type Masker interface {
	ProcessText(text string) privacy.ProcessResult
}

// Options configures a Relay
type Options struct {
	TargetURL       string
	ChannelCapacity int
	ChunkSize       int
	MaxLineBytes    int
}

// Relay masks inbound request bodies while streaming them to the upstream
// target. One Relay serves every request; all per-request state lives in a
// Session.
type Relay struct {
	opts   Options
	masker Masker
	client *http.Client
	logger *logger.Logger
}

// New creates a relay. client is shared by all sessions and carries the
// upstream timeout.
func New(opts Options, masker Masker, client *http.Client, log *logger.Logger) *Relay {
	if opts.ChannelCapacity <= 0 {
		opts.ChannelCapacity = 32
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 32 * 1024
	}
	return &Relay{
		opts:   opts,
		masker: masker,
		client: client,
		logger: log,
	}
}

// Serve relays r's body to the target and the target's response back to w.
// It returns once both the masking goroutine and the response stream are
// finished, so the returned Session is safe to inspect.
func (rl *Relay) Serve(w http.ResponseWriter, r *http.Request, requestID string) *Session {
	log := rl.logger.WithRequestID(requestID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := newSession(requestID, rl.opts.ChannelCapacity)

	// The inbound body keeps being read after the response starts
	if err := http.NewResponseController(w).EnableFullDuplex(); err != nil {
		log.Debug("Full duplex unavailable", zap.Error(err))
	}

	go rl.produce(ctx, sess, r.Body, log)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rl.opts.TargetURL, &unitReader{ctx: ctx, sess: sess})
	if err != nil {
		cancel()
		<-sess.done
		rl.fail(w, sess, fmt.Errorf("%w: %v", ErrUpstream, err), ReasonUpstream, log)
		return sess
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set(requestIDHeader, requestID)

	resp, err := rl.client.Do(req)
	if err != nil {
		cancel()
		<-sess.done
		rl.fail(w, sess, fmt.Errorf("%w: %v", ErrUpstream, err), classify(r.Context(), sess, err), log)
		return sess
	}
	defer resp.Body.Close()

	sess.advance(StateForwarding)

	for key, values := range resp.Header {
		if canonical := http.CanonicalHeaderKey(key); hopHeaders[canonical] || canonical == requestIDHeader {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	sess.statusCode = resp.StatusCode

	n, copyErr := copyResponse(w, resp.Body)
	sess.bytesOut = n

	cancel()
	<-sess.done

	switch {
	case r.Context().Err() != nil:
		sess.err = r.Context().Err()
		sess.reason = ReasonCanceled
	case copyErr != nil:
		sess.err = fmt.Errorf("%w: stream response: %v", ErrUpstream, copyErr)
		sess.reason = ReasonTransport
	case sess.inboundErr != nil:
		sess.err = sess.inboundErr
		sess.reason = ReasonInbound
	}

	rl.finish(sess, log)
	return sess
}

// produce reads the inbound body, masks complete lines and pushes them to
// the session channel in arrival order. It is the only writer of units and
// returns as soon as ctx is done, even while an inbound read is pending.
func (rl *Relay) produce(ctx context.Context, sess *Session, body io.Reader, log *logger.Logger) {
	defer close(sess.done)
	defer close(sess.units)

	lines := NewLineBuffer(rl.opts.MaxLineBytes)
	reads := readInbound(ctx, body, rl.opts.ChunkSize)

	for {
		if ctx.Err() != nil {
			return
		}

		var res readResult
		select {
		case res = <-reads:
		case <-ctx.Done():
			return
		}

		n, err := len(res.data), res.err
		if n > 0 {
			sess.advance(StateReceiving)
			sess.bytesIn += int64(n)
			if unit, ok := lines.Append(res.data); ok {
				if !rl.push(ctx, sess, unit) {
					return
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Units already pushed still reach the upstream; the partial tail does not.
			sess.inboundErr = fmt.Errorf("read inbound body: %w", err)
			log.Warn("Inbound stream failed",
				zap.Error(err),
				zap.Int64("bytes_in", sess.bytesIn),
				zap.Int("units_sent", sess.unitsSent),
				zap.Int("discarded_bytes", lines.Pending()),
			)
			return
		}
	}

	sess.advance(StateDraining)
	if unit, ok := lines.Flush(); ok {
		rl.push(ctx, sess, unit)
	}
}

// push masks unit and blocks until the consumer has room for it
func (rl *Relay) push(ctx context.Context, sess *Session, unit string) bool {
	if ctx.Err() != nil {
		return false
	}

	result := rl.masker.ProcessText(unit)
	sess.addFindings(result.Findings)

	masked := []byte(result.MaskedText)
	if ctx.Err() != nil {
		return false
	}
	select {
	case sess.units <- masked:
		sess.unitsSent++
		sess.bytesMasked += int64(len(masked))
		return true
	case <-ctx.Done():
		return false
	}
}

type readResult struct {
	data []byte
	err  error
}

// readInbound moves body reads onto their own goroutine so the producer can
// give up on ctx without waiting for a blocked Read. The goroutine exits on
// the first read error or once ctx is done.
func readInbound(ctx context.Context, body io.Reader, size int) <-chan readResult {
	out := make(chan readResult)
	go func() {
		for {
			buf := make([]byte, size)
			n, err := body.Read(buf)
			if n == 0 && err == nil {
				continue
			}
			select {
			case out <- readResult{data: buf[:n], err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// fail answers the caller when no upstream response is available
func (rl *Relay) fail(w http.ResponseWriter, sess *Session, err error, reason string, log *logger.Logger) {
	sess.err = err
	sess.reason = reason

	status := http.StatusBadGateway
	if reason == ReasonTooLarge {
		status = http.StatusRequestEntityTooLarge
	}
	sess.statusCode = status

	if reason != ReasonCanceled {
		http.Error(w, http.StatusText(status), status)
	}

	rl.finish(sess, log)
}

func (rl *Relay) finish(sess *Session, log *logger.Logger) {
	sess.duration = time.Since(sess.StartedAt)

	fields := []zap.Field{
		zap.Int("status_code", sess.statusCode),
		zap.Int64("bytes_in", sess.bytesIn),
		zap.Int64("bytes_masked", sess.bytesMasked),
		zap.Int64("bytes_out", sess.bytesOut),
		zap.Int("units", sess.unitsSent),
		zap.Int("findings", sess.TotalFindings()),
		zap.Duration("duration", sess.duration),
	}

	if sess.err != nil {
		sess.setState(StateFailed)
		log.Warn("Relay session failed", append(fields, zap.String("reason", sess.reason), zap.Error(sess.err))...)
		return
	}

	sess.setState(StateCompleted)
	log.Info("Relay session completed", fields...)
}

// classify explains why the upstream call produced no response
func classify(callerCtx context.Context, sess *Session, err error) string {
	var maxErr *http.MaxBytesError
	switch {
	case callerCtx.Err() != nil:
		return ReasonCanceled
	case errors.As(sess.inboundErr, &maxErr):
		return ReasonTooLarge
	case sess.inboundErr != nil:
		return ReasonInbound
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ReasonTimeout
	}
	return ReasonUpstream
}

// copyResponse streams the upstream body to the caller, flushing after each
// read so nothing is held back in full.
func copyResponse(w http.ResponseWriter, body io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)

	var written int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			_ = rc.Flush()
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// unitReader exposes the session channel as the outbound request body
type unitReader struct {
	ctx       context.Context
	sess      *Session
	cur       []byte
	delivered int64
}

func (u *unitReader) Read(p []byte) (int, error) {
	for len(u.cur) == 0 {
		select {
		case unit, ok := <-u.sess.units:
			if !ok {
				// Nothing was forwarded: surface the inbound error so the call fails.
				if u.delivered == 0 && u.sess.inboundErr != nil {
					return 0, u.sess.inboundErr
				}
				return 0, io.EOF
			}
			u.cur = unit
		case <-u.ctx.Done():
			return 0, u.ctx.Err()
		}
	}

	n := copy(p, u.cur)
	u.cur = u.cur[n:]
	u.delivered += int64(n)
	return n, nil
}
