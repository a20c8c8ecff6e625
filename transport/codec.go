// Package transport is dropperoni's transport codec (C3): splitting a
// buffered HTTP message into header block and body, detecting
// Content-Encoding, and decompressing/recompressing gzip and deflate
// bodies. It is grounded on original_source/src/transport/compression.rs
// (krystianbajno/dropperoni's own compression module) translated to Go,
// using klauspost/compress's gzip and zlib packages — drop-in
// replacements for the standard library's that Caddy's own encode
// middleware depends on.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// headerBodyDelimiter is the four-byte sequence that ends an HTTP
// header block.
var headerBodyDelimiter = []byte{0x0D, 0x0A, 0x0D, 0x0A}

// Encoding names a supported Content-Encoding.
type Encoding string

const (
	Gzip    Encoding = "gzip"
	Deflate Encoding = "deflate"
)

// CodecError reports a decompression/recompression failure or an
// unrecognized encoding name.
type CodecError struct {
	Encoding string
	Err      error
}

func (e *CodecError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport: unknown encoding %q", e.Encoding)
	}
	return fmt.Sprintf("transport: %s codec: %v", e.Encoding, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// SplitHeaderBody scans buf for the first CRLFCRLF. If found it
// returns (prefix-including-delimiter, suffix); otherwise it returns
// (buf, nil) — the message is not yet well-formed. The split point is
// byte-exact and p++s == buf always holds.
func SplitHeaderBody(buf []byte) (header, body []byte) {
	idx := bytes.Index(buf, headerBodyDelimiter)
	if idx == -1 {
		return buf, nil
	}
	split := idx + len(headerBodyDelimiter)
	return buf[:split], buf[split:]
}

// DetectEncoding does a case-sensitive substring search on the header
// block for a declared Content-Encoding. The first of gzip/deflate
// found wins; a header block that is not valid UTF-8 never matches.
func DetectEncoding(header []byte) (Encoding, bool) {
	if !utf8.Valid(header) {
		return "", false
	}
	if bytes.Contains(header, []byte("Content-Encoding: gzip")) {
		return Gzip, true
	}
	if bytes.Contains(header, []byte("Content-Encoding: deflate")) {
		return Deflate, true
	}
	return "", false
}

// IsTextContent is the text-content gate: a response body is only
// eligible for rewriting if its header block contains (case
// insensitively) the literal "content-type: text".
func IsTextContent(header []byte) bool {
	return bytes.Contains(bytes.ToLower(header), []byte("content-type: text"))
}

// Decompress inflates body according to enc. gzip uses the gzip
// container; deflate uses the zlib container deliberately, not raw
// DEFLATE, so it round-trips with Compress below.
func Decompress(body []byte, enc Encoding) ([]byte, error) {
	var r io.ReadCloser
	var err error
	switch enc {
	case Gzip:
		r, err = gzip.NewReader(bytes.NewReader(body))
	case Deflate:
		r, err = zlib.NewReader(bytes.NewReader(body))
	default:
		return nil, &CodecError{Encoding: string(enc)}
	}
	if err != nil {
		return nil, &CodecError{Encoding: string(enc), Err: err}
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &CodecError{Encoding: string(enc), Err: err}
	}
	return out, nil
}

// Compress deflates body according to enc using the library's default
// compression level.
func Compress(body []byte, enc Encoding) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch enc {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Deflate:
		w = zlib.NewWriter(&buf)
	default:
		return nil, &CodecError{Encoding: string(enc)}
	}

	if _, err := w.Write(body); err != nil {
		return nil, &CodecError{Encoding: string(enc), Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &CodecError{Encoding: string(enc), Err: err}
	}
	return buf.Bytes(), nil
}
