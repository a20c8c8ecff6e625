package proxy

import (
	"errors"
	"strings"
)

// Scheme is the upstream connection scheme.
type Scheme int

const (
	Plain Scheme = iota
	TLS
)

// ErrInvalidTarget is returned when a configured upstream target
// string resolves to an empty SNI host.
var ErrInvalidTarget = errors.New("proxy: invalid target: empty host")

// Target is the parsed form of the configured upstream address (spec
// §3 "Target descriptor"): scheme, authority (host:port), and the SNI
// host derived from authority for TLS upstreams.
type Target struct {
	Scheme    Scheme
	Authority string
	SNIHost   string
}

// ParseTarget strips a leading "https://" or "http://" from raw and
// derives the SNI host as the authority truncated at the first colon.
// An authority with no host segment fails with ErrInvalidTarget before
// any bytes are forwarded.
func ParseTarget(raw string) (Target, error) {
	scheme := Plain
	authority := raw
	switch {
	case strings.HasPrefix(raw, "https://"):
		scheme = TLS
		authority = strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		scheme = Plain
		authority = strings.TrimPrefix(raw, "http://")
	}

	sniHost := authority
	if idx := strings.IndexByte(authority, ':'); idx != -1 {
		sniHost = authority[:idx]
	}
	if sniHost == "" {
		return Target{}, ErrInvalidTarget
	}

	return Target{Scheme: scheme, Authority: authority, SNIHost: sniHost}, nil
}
