// Package rewrite is dropperoni's rewrite engine (C4): two pluggable,
// line-granular text transforms — one for request messages, one for
// response messages — assembled through a builder whose unspecified
// slots fall back to sensible defaults. It is grounded on
// original_source/src/mitm/mitm.rs's RequestModifier/ResponseModifier
// traits and MitmBuilder, translated to Go interfaces plus a
// functional-options-style builder in the manner of Caddy's own
// pluggable reverseproxy.SelectionPolicy types.
package rewrite

import "strings"

// RequestRewriter modifies request message text.
type RequestRewriter interface {
	Modify(text, needle, payload string) string
}

// ResponseRewriter modifies response message text.
type ResponseRewriter interface {
	Modify(text, needle, payload string) string
}

// RequestRewriterFunc adapts a function to a RequestRewriter.
type RequestRewriterFunc func(text, needle, payload string) string

func (f RequestRewriterFunc) Modify(text, needle, payload string) string { return f(text, needle, payload) }

// ResponseRewriterFunc adapts a function to a ResponseRewriter.
type ResponseRewriterFunc func(text, needle, payload string) string

func (f ResponseRewriterFunc) Modify(text, needle, payload string) string { return f(text, needle, payload) }

// DefaultRequestRewriter replaces every line that starts with needle
// with payload; all other lines pass through unchanged. Every output
// line is CRLF-terminated, including the terminal empty line.
type DefaultRequestRewriter struct{}

func (DefaultRequestRewriter) Modify(text, needle, payload string) string {
	return rewriteLines(text, func(line string) (string, bool) {
		if strings.HasPrefix(line, needle) {
			return payload, true
		}
		return line, false
	})
}

// DefaultResponseRewriter replaces the first line that contains
// needle with payload; every subsequent matching line is left alone,
// so at most one output line ever differs from the input.
type DefaultResponseRewriter struct{}

func (DefaultResponseRewriter) Modify(text, needle, payload string) string {
	replaced := false
	return rewriteLines(text, func(line string) (string, bool) {
		if !replaced && strings.Contains(line, needle) {
			replaced = true
			return payload, true
		}
		return line, false
	})
}

// Builder assembles a (RequestRewriter, ResponseRewriter) pair.
// Unspecified slots fall back to the defaults above.
type Builder struct {
	request  RequestRewriter
	response ResponseRewriter
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// WithRequestRewriter installs a custom request rewriter.
func (b *Builder) WithRequestRewriter(r RequestRewriter) *Builder {
	b.request = r
	return b
}

// WithResponseRewriter installs a custom response rewriter.
func (b *Builder) WithResponseRewriter(r ResponseRewriter) *Builder {
	b.response = r
	return b
}

// Pair is the built (request, response) rewriter pair.
type Pair struct {
	Request  RequestRewriter
	Response ResponseRewriter
}

// Build finalizes the pair, substituting defaults for any unset slot.
func (b *Builder) Build() Pair {
	p := Pair{Request: b.request, Response: b.response}
	if p.Request == nil {
		p.Request = DefaultRequestRewriter{}
	}
	if p.Response == nil {
		p.Response = DefaultResponseRewriter{}
	}
	return p
}

// NewHostRewritePair is the shipped default for the proxy: the
// request rewriter replaces the "Host:" line with "Host: <sniHost>";
// the response rewriter is identity (pass-through) — the framework
// supports response content transforms, the shipped configuration
// performs none.
func NewHostRewritePair() Pair {
	return NewBuilder().
		WithRequestRewriter(hostRewriter{}).
		WithResponseRewriter(ResponseRewriterFunc(func(text, _, _ string) string {
			return text
		})).
		Build()
}

// hostRewriter rewrites the Host header; payload is the upstream SNI
// host, needle is ignored (the needle is always "Host:").
type hostRewriter struct{}

func (hostRewriter) Modify(text, _, payload string) string {
	return DefaultRequestRewriter{}.Modify(text, "Host:", "Host: "+payload)
}

func rewriteLines(text string, transform func(line string) (string, bool)) string {
	var out []byte
	for _, line := range splitLines(text) {
		newLine, _ := transform(line)
		out = append(out, newLine...)
		out = append(out, '\r', '\n')
	}
	return string(out)
}

// splitLines splits on LF and trims a trailing CR, the way the
// original Rust engine's str::lines() does, so CRLF- and
// LF-terminated input are both handled uniformly.
func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			line := text[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	if start < len(text) {
		line := text[start:]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		lines = append(lines, line)
	}
	return lines
}
