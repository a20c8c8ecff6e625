package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/krystianbajno/dropperoni/dlog"
	"github.com/krystianbajno/dropperoni/rewrite"
)

// Listener owns the accept loop (spec §3's "listener"): it binds a TLS
// acceptor over the given address and spawns one Session per accepted
// connection, continuing to accept across per-session failures. It is
// grounded on the hijack-and-spawn loop in Caddy's own HTTP server,
// simplified to a single static target rather than a routing table.
type Listener struct {
	ln        net.Listener
	targetRaw string
	rewrites  rewrite.Pair
	metrics   *Metrics
	log       *zap.Logger
}

// NewListener binds addr and wraps it with acceptorCfg. targetRaw is
// the configured upstream target string (spec §5: "the target address
// string (cloned per task)") — it is NOT parsed here. Per spec §4.5's
// state machine, target resolution happens inside each Session after
// its client handshake, so a malformed target fails that one session
// (spec §8 S5) without ever preventing the listener from binding or
// accepting subsequent connections.
func NewListener(addr string, acceptorCfg *tls.Config, targetRaw string, metrics *Metrics) (*Listener, error) {
	tcpLn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("proxy: binding %s: %w", addr, err)
	}

	return &Listener{
		ln:        tls.NewListener(tcpLn, acceptorCfg),
		targetRaw: targetRaw,
		rewrites:  rewrite.NewHostRewritePair(),
		metrics:   metrics,
		log:       dlog.For("listener"),
	}, nil
}

// Addr reports the bound address, useful when addr was given as
// "host:0" and the OS picked an ephemeral port.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections. In-flight sessions are not
// interrupted.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve runs the accept loop until ctx is canceled or the listener is
// closed. Each accepted connection is handed to its own goroutine
// running a fresh Session; a single connection's failure (including a
// failed handshake) never stops the loop, per spec §5's "continues
// accepting" requirement.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	l.log.Info("proxy listener started",
		zap.String("addr", l.ln.Addr().String()),
		zap.String("target", l.targetRaw),
	)

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.log.Warn("accept failed", zap.Error(err))
			continue
		}

		tlsConn, ok := conn.(*tls.Conn)
		if !ok {
			// tls.Listener always hands back *tls.Conn; this guards
			// against the listener being swapped for a plain one.
			l.log.Error("accepted connection is not TLS, dropping")
			_ = conn.Close()
			continue
		}

		session := NewSession(tlsConn, l.targetRaw, l.rewrites, l.metrics)
		go session.Run(ctx)
	}
}
