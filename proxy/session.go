// Package proxy is dropperoni's proxy session (C5): the per-connection
// state machine that terminates a client's TLS connection, opens the
// configured upstream leg, and shuttles bytes between them, invoking
// the transport codec (C3) and rewrite engine (C4) at message
// boundaries. It is grounded on the hijack-then-io.Copy bridging loop
// in caddyhttp/proxy/reverseproxy.go's WebSocket upgrade path,
// generalized from a one-shot byte copy to a message-aware loop that
// decodes, rewrites, and recompresses text bodies in flight.
package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/krystianbajno/dropperoni/dlog"
	"github.com/krystianbajno/dropperoni/rewrite"
	"github.com/krystianbajno/dropperoni/tlskit"
	"github.com/krystianbajno/dropperoni/transport"
)

// readChunkSize is the buffer size for each Read call on either leg,
// matching original_source's BUFFER_SIZE constant.
const readChunkSize = 4096

// Session is one intercepted connection: a terminated client TLS
// stream paired with an upstream stream opened against the configured
// Target. Sessions are not reused; a Session value is run exactly
// once.
type Session struct {
	id        string
	client    *tls.Conn
	targetRaw string
	target    Target
	rewrites  rewrite.Pair
	metrics   *Metrics
	log       *zap.Logger
}

// NewSession builds a session around an already-accepted (but not yet
// handshaken) client TLS connection. targetRaw is the configured
// upstream target string, cloned per spec §5 and resolved fresh inside
// Run after the client handshake completes (spec §4.5's
// Target-Resolved transition is per-session, not once at listener
// construction, so a malformed target only ever fails the one
// session). rewrites is shared read-only across all sessions spawned
// by the same Listener; metrics may be nil, in which case counters are
// silently skipped.
func NewSession(client *tls.Conn, targetRaw string, rewrites rewrite.Pair, metrics *Metrics) *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		client:    client,
		targetRaw: targetRaw,
		rewrites:  rewrites,
		metrics:   metrics,
		log: dlog.For("proxy").With(
			zap.String("session_id", id),
			zap.Stringer("remote_addr", client.RemoteAddr()),
		),
	}
}

// errKind labels a terminal failure for the session_errors_total
// counter; it mirrors original_source's own coarse error taxonomy
// rather than enumerating every possible net.OpError.
type errKind string

const (
	errKindHandshake errKind = "tls_handshake"
	errKindTarget    errKind = "invalid_target"
	errKindDial      errKind = "dial_upstream"
	errKindIO        errKind = "io"
)

// Run drives the session to completion: client handshake, upstream
// dial, then bidirectional bridging until either leg terminates. It
// never returns an error; all failures are logged and counted, since
// a Listener runs one Session per accepted connection and must keep
// accepting regardless of any single session's fate.
func (s *Session) Run(ctx context.Context) {
	defer s.client.Close()

	if err := s.client.HandshakeContext(ctx); err != nil {
		s.fail(errKindHandshake, "client TLS handshake failed", err)
		return
	}

	target, err := ParseTarget(s.targetRaw)
	if err != nil {
		s.fail(errKindTarget, "resolving upstream target", err)
		return
	}
	s.target = target

	server, err := s.dialUpstream(ctx)
	if err != nil {
		return // dialUpstream already logged and counted
	}
	defer server.Close()

	s.countSession()
	s.log.Info("session established",
		zap.String("authority", s.target.Authority),
		zap.Bool("upstream_tls", s.target.Scheme == TLS),
	)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = s.client.Close()
			_ = server.Close()
		})
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		defer closeBoth()
		return s.pumpClientToServer(s.client, server)
	})
	g.Go(func() error {
		defer closeBoth()
		return s.pumpServerToClient(server, s.client)
	})

	if err := g.Wait(); err != nil && !isBenignCloseError(err) {
		s.fail(errKindIO, "session ended with I/O error", err)
	} else {
		s.log.Debug("session ended cleanly")
	}
}

// dialUpstream opens the upstream leg per s.target.Scheme: a plain TCP
// socket, or a TLS connection using tlskit's trust-bypass connector.
func (s *Session) dialUpstream(ctx context.Context) (*tlskit.Stream, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", s.target.Authority)
	if err != nil {
		s.fail(errKindDial, "dialing upstream", err)
		return nil, err
	}

	if s.target.Scheme == Plain {
		return tlskit.NewPlainStream(conn), nil
	}

	tlsConn := tls.Client(conn, tlskit.NewConnectorConfig(s.target.SNIHost))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		s.fail(errKindHandshake, "upstream TLS handshake failed", err)
		return nil, err
	}
	return tlskit.NewTLSStream(tlsConn), nil
}

// pumpClientToServer is the request path: each chunk read from the
// client is rewritten as a whole if (and only if) it decodes as valid
// UTF-8 text, since request message rewriting operates on the raw
// header/body text per spec §4.4 rather than on a reassembled,
// content-length-aware body. A chunk that fails to decode is forwarded
// byte for byte, unexamined.
func (s *Session) pumpClientToServer(from *tls.Conn, to *tlskit.Stream) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := from.Read(buf)
		if n > 0 {
			out := s.rewriteRequestChunk(buf[:n])
			if _, werr := to.Write(out); werr != nil {
				return fmt.Errorf("proxy: writing to upstream: %w", werr)
			}
			s.countBytes("request", len(out))
		}
		if err != nil {
			return translateReadErr(err)
		}
	}
}

// pumpServerToClient is the response path: bytes are accumulated until
// a CRLFCRLF header/body boundary is seen, at which point the header
// block is inspected for a text content type and a declared encoding.
// Text bodies are decompressed, rewritten, and recompressed before
// being forwarded; everything else — headers seen but body opaque, or
// no boundary yet found — passes through unchanged. Once the boundary
// has been processed, all further reads are forwarded verbatim: the
// rewrite engine only ever touches the first message on the
// connection, matching the spec's single-message-per-session model.
func (s *Session) pumpServerToClient(from *tlskit.Stream, to *tls.Conn) error {
	buf := make([]byte, readChunkSize)
	var pending []byte
	boundaryHandled := false

	for {
		n, err := from.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if boundaryHandled {
				if werr := s.forward(to, chunk); werr != nil {
					return werr
				}
			} else {
				pending = append(pending, chunk...)
				header, body := transport.SplitHeaderBody(pending)
				if body != nil {
					out := s.rewriteResponseMessage(header, body)
					if werr := s.forward(to, out); werr != nil {
						return werr
					}
					boundaryHandled = true
					pending = nil
				}
				// otherwise no CRLFCRLF yet; keep buffering
			}
		}
		if err != nil {
			if !boundaryHandled {
				// the upstream ended before any boundary; flush what was buffered
				if werr := s.forward(to, pending); werr != nil {
					return werr
				}
			}
			return translateReadErr(err)
		}
	}
}

func (s *Session) forward(to *tls.Conn, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := to.Write(b); err != nil {
		return fmt.Errorf("proxy: writing to client: %w", err)
	}
	s.countBytes("response", len(b))
	return nil
}

// rewriteRequestChunk applies the request rewriter when chunk decodes
// as UTF-8; otherwise it is passed through unexamined, matching
// original_source's decode-or-forward behavior for binary request
// bodies (uploads, etc.).
func (s *Session) rewriteRequestChunk(chunk []byte) []byte {
	if !utf8.Valid(chunk) {
		return chunk
	}
	rewritten := s.rewrites.Request.Modify(string(chunk), "Host:", s.target.SNIHost)
	return []byte(rewritten)
}

// rewriteResponseMessage applies the text-content gate, optional
// decompress/rewrite/recompress round trip, and reassembles header
// plus (possibly transformed) body.
func (s *Session) rewriteResponseMessage(header, body []byte) []byte {
	if !transport.IsTextContent(header) {
		return concat(header, body)
	}

	enc, hasEnc := transport.DetectEncoding(header)
	text := body
	if hasEnc {
		plain, err := transport.Decompress(body, enc)
		if err != nil {
			s.log.Warn("decompressing response body failed, forwarding untouched", zap.Error(err))
			return concat(header, body)
		}
		text = plain
	}

	if !utf8.Valid(text) {
		return concat(header, body)
	}

	rewritten := []byte(s.rewrites.Response.Modify(string(text), "", s.target.SNIHost))

	outBody := rewritten
	if hasEnc {
		recompressed, err := transport.Compress(rewritten, enc)
		if err != nil {
			s.log.Warn("recompressing response body failed, forwarding untouched", zap.Error(err))
			return concat(header, body)
		}
		outBody = recompressed
	}

	return concat(header, outBody)
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func (s *Session) countSession() {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionsTotal.Inc()
}

func (s *Session) countBytes(direction string, n int) {
	if s.metrics == nil || n == 0 {
		return
	}
	s.metrics.BytesForwarded.WithLabelValues(direction).Add(float64(n))
	s.log.Debug("forwarded", zap.String("direction", direction), zap.String("size", humanize.Bytes(uint64(n))))
}

func (s *Session) fail(kind errKind, msg string, err error) {
	s.log.Warn(msg, zap.Error(err), zap.String("kind", string(kind)))
	if s.metrics != nil {
		s.metrics.SessionErrorsTotal.WithLabelValues(string(kind)).Inc()
	}
}

// translateReadErr normalizes io.EOF and the common "use of closed
// network connection" shutdown error to nil, since both represent a
// clean session end rather than a failure worth surfacing.
func translateReadErr(err error) error {
	if isBenignCloseError(err) {
		return nil
	}
	return fmt.Errorf("proxy: read: %w", err)
}

func isBenignCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil && opErr.Err.Error() == "use of closed network connection" {
		return true
	}
	return errors.Is(err, io.EOF)
}
