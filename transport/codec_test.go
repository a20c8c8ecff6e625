package transport

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHeaderBodyDeterminism(t *testing.T) {
	f := func(b []byte) bool {
		header, body := SplitHeaderBody(b)
		if len(header)+len(body) != len(b) {
			return false
		}
		joined := append(append([]byte{}, header...), body...)
		if string(joined) != string(b) {
			return false
		}
		if idx := indexCRLFCRLF(b); idx != -1 {
			want := idx + 4
			if len(header) != want {
				return false
			}
		}
		return true
	}
	require.NoError(t, quick.Check(f, nil))
}

func indexCRLFCRLF(b []byte) int {
	for i := 0; i+4 <= len(b); i++ {
		if b[i] == 0x0D && b[i+1] == 0x0A && b[i+2] == 0x0D && b[i+3] == 0x0A {
			return i
		}
	}
	return -1
}

func TestSplitHeaderBodyNoDelimiterReturnsWholeBuffer(t *testing.T) {
	body := []byte("no delimiter here")
	header, rest := SplitHeaderBody(body)
	assert.Equal(t, body, header)
	assert.Nil(t, rest)
}

func TestSplitHeaderBodyExactDelimiter(t *testing.T) {
	msg := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\nbody-bytes")
	header, body := SplitHeaderBody(msg)
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n", string(header))
	assert.Equal(t, "body-bytes", string(body))
}

func TestDetectEncoding(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   Encoding
		wantOK bool
	}{
		{"gzip", "HTTP/1.1 200 OK\r\nContent-Encoding: gzip\r\n\r\n", Gzip, true},
		{"deflate", "HTTP/1.1 200 OK\r\nContent-Encoding: deflate\r\n\r\n", Deflate, true},
		{"none", "HTTP/1.1 200 OK\r\n\r\n", "", false},
		{"invalid utf8", string([]byte{0xff, 0xfe, 0xfd}), "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := DetectEncoding([]byte(c.header))
			assert.Equal(t, c.wantOK, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestIsTextContent(t *testing.T) {
	assert.True(t, IsTextContent([]byte("HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n")))
	assert.True(t, IsTextContent([]byte("HTTP/1.1 200 OK\r\nCONTENT-TYPE: TEXT/plain\r\n\r\n")))
	assert.False(t, IsTextContent([]byte("HTTP/1.1 200 OK\r\nContent-Type: application/octet-stream\r\n\r\n")))
}

func TestCodecRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{Gzip, Deflate} {
		enc := enc
		t.Run(string(enc), func(t *testing.T) {
			payload := []byte("<html><body>hello, proxy!</body></html>")
			compressed, err := Compress(payload, enc)
			require.NoError(t, err)
			decompressed, err := Decompress(compressed, enc)
			require.NoError(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}
}

func TestCodecUnknownEncoding(t *testing.T) {
	_, err := Compress([]byte("x"), "brotli")
	require.Error(t, err)
	var codecErr *CodecError
	assert.ErrorAs(t, err, &codecErr)

	_, err = Decompress([]byte("x"), "brotli")
	require.Error(t, err)
	assert.ErrorAs(t, err, &codecErr)
}

func TestDecompressFailureIsCodecError(t *testing.T) {
	_, err := Decompress([]byte("not gzip data"), Gzip)
	require.Error(t, err)
	var codecErr *CodecError
	assert.ErrorAs(t, err, &codecErr)
}
