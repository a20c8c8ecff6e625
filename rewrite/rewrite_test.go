package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func allLinesCRLFTerminated(t *testing.T, s string) {
	t.Helper()
	if s == "" {
		return
	}
	assert.True(t, strings.HasSuffix(s, "\r\n"), "output must end with CRLF: %q", s)
	assert.False(t, strings.Contains(strings.TrimSuffix(s, "\r\n"), "\n\n"))
}

func TestDefaultRequestRewriterReplacesMatchingLines(t *testing.T) {
	in := "GET / HTTP/1.1\r\nHost: proxy.example\r\n\r\n"
	out := DefaultRequestRewriter{}.Modify(in, "Host:", "Host: 127.0.0.1")
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n", out)
	allLinesCRLFTerminated(t, out)
}

func TestDefaultRequestRewriterLineLocality(t *testing.T) {
	in := "GET / HTTP/1.1\r\nHost: a\r\nX-Other: b\r\n\r\n"
	out := DefaultRequestRewriter{}.Modify(in, "Host:", "Host: c")
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: c\r\nX-Other: b\r\n\r\n", out)
}

func TestDefaultRequestRewriterIdentityOnMismatch(t *testing.T) {
	in := "GET / HTTP/1.1\r\nX-Other: b\r\n\r\n"
	out := DefaultRequestRewriter{}.Modify(in, "Host:", "Host: c")
	assert.Equal(t, in, out)
}

func TestDefaultResponseRewriterSingleShot(t *testing.T) {
	in := "<html>\r\nfoo bar\r\nfoo bar\r\n</html>\r\n"
	out := DefaultResponseRewriter{}.Modify(in, "foo", "REPLACED")
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\r\n")
	diffs := 0
	for _, l := range lines {
		if l == "REPLACED" {
			diffs++
		}
	}
	assert.Equal(t, 1, diffs)
	assert.Contains(t, out, "foo bar\r\n") // the second occurrence survives untouched
}

func TestDefaultResponseRewriterIdentityOnMismatch(t *testing.T) {
	in := "<html>\r\nno match\r\n</html>\r\n"
	out := DefaultResponseRewriter{}.Modify(in, "needle", "payload")
	assert.Equal(t, in, out)
}

func TestHostRewritePairRewritesHostOnly(t *testing.T) {
	pair := NewHostRewritePair()
	req := "GET / HTTP/1.1\r\nHost: proxy.example\r\n\r\n"
	got := pair.Request.Modify(req, "", "127.0.0.1")
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n", got)

	resp := "HTTP/1.1 200 OK\r\n\r\n<html>ok</html>"
	assert.Equal(t, resp, pair.Response.Modify(resp, "", "127.0.0.1"))
}

func TestBuilderFallsBackToDefaults(t *testing.T) {
	pair := NewBuilder().Build()
	_, okReq := pair.Request.(DefaultRequestRewriter)
	_, okResp := pair.Response.(DefaultResponseRewriter)
	assert.True(t, okReq)
	assert.True(t, okResp)
}

func TestBuilderHonorsCustomRewriters(t *testing.T) {
	custom := RequestRewriterFunc(func(text, _, _ string) string { return "custom" })
	pair := NewBuilder().WithRequestRewriter(custom).Build()
	assert.Equal(t, "custom", pair.Request.Modify("anything", "", ""))
}
