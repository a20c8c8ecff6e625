package dropcmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krystianbajno/dropperoni/certs"
	"github.com/krystianbajno/dropperoni/dlog"
	"github.com/krystianbajno/dropperoni/fileserver"
	"github.com/krystianbajno/dropperoni/proxy"
	"github.com/krystianbajno/dropperoni/tlskit"
)

func run(cmd *cobra.Command, cfg config) error {
	if err := dlog.Configure(cfg.logFile); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	log := dlog.For("bootstrap")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	var metrics *proxy.Metrics
	if cfg.metricsAddr != "" {
		metrics = proxy.NewMetrics(registry)
		serveMetrics(ctx, cfg.metricsAddr, registry, log)
	}

	addr := net.JoinHostPort(cfg.listen, strconv.Itoa(cfg.port))

	if cfg.proxy == "" {
		log.Info("starting file server", zap.String("addr", addr), zap.String("directory", cfg.directory))
		srv := &http.Server{Addr: addr, Handler: fileserver.New(cfg.directory)}
		if cfg.tls {
			material, err := certs.Obtain(cfg.issuer, cfg.privPath, cfg.certPath)
			if err != nil {
				return fmt.Errorf("obtaining certificate material: %w", err)
			}
			if srv.TLSConfig, err = tlskit.NewAcceptorConfig(material.CertDER, material.KeyDER); err != nil {
				return fmt.Errorf("building TLS acceptor: %w", err)
			}
		}
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		var serveErr error
		if srv.TLSConfig != nil {
			serveErr = srv.ListenAndServeTLS("", "")
		} else {
			serveErr = srv.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			return fmt.Errorf("file server: %w", serveErr)
		}
		return nil
	}

	if !cfg.tls {
		log.Warn("--proxy given without --tls/--ssl; the proxy always terminates client TLS, enabling it")
	}

	material, err := certs.Obtain(cfg.issuer, cfg.privPath, cfg.certPath)
	if err != nil {
		return fmt.Errorf("obtaining certificate material: %w", err)
	}

	acceptorCfg, err := tlskit.NewAcceptorConfig(material.CertDER, material.KeyDER)
	if err != nil {
		return fmt.Errorf("building TLS acceptor: %w", err)
	}

	listener, err := proxy.NewListener(addr, acceptorCfg, cfg.proxy, metrics)
	if err != nil {
		return fmt.Errorf("starting proxy listener: %w", err)
	}
	defer listener.Close()

	return listener.Serve(ctx)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	go func() {
		log.Info("metrics endpoint started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics endpoint stopped", zap.Error(err))
		}
	}()
}
