package dropcmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// config is the parsed, validated form of the CLI flags (SPEC_FULL §3's
// "CLI configuration" data model).
type config struct {
	listen      string
	port        int
	directory   string
	tls         bool
	ssl         bool
	issuer      string
	proxy       string
	privPath    string
	certPath    string
	logFile     string
	metricsAddr string
}

func bindFlags(cmd *cobra.Command) *config {
	cfg := &config{}
	var f *pflag.FlagSet = cmd.Flags()
	f.StringVar(&cfg.listen, "listen", "0.0.0.0", "bind address")
	f.IntVar(&cfg.port, "port", 8000, "bind port")
	f.StringVar(&cfg.directory, "directory", ".", "directory for the file server")
	f.BoolVar(&cfg.tls, "tls", false, "enable TLS termination mode")
	f.BoolVar(&cfg.ssl, "ssl", false, "alias for --tls")
	f.StringVar(&cfg.issuer, "issuer", "getrekt.com", "subject CN for the synthesised certificate")
	f.StringVar(&cfg.proxy, "proxy", "", "upstream target, e.g. https://example.com:443; empty serves local files")
	f.StringVar(&cfg.privPath, "priv", "", "path to a PEM PKCS#8 private key to load instead of synthesising one")
	f.StringVar(&cfg.certPath, "cert", "", "path to a PEM X.509 certificate to load instead of synthesising one")
	f.StringVar(&cfg.logFile, "log-file", "", "path for rotated file logging; empty logs to stderr")
	f.StringVar(&cfg.metricsAddr, "metrics-addr", "", "host:port to expose Prometheus metrics; empty disables metrics")
	return cfg
}

// resolved normalizes --ssl as an alias for --tls once flags have been
// parsed by cobra.
func (c *config) resolved() config {
	out := *c
	out.tls = out.tls || out.ssl
	return out
}
