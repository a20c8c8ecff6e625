package proxy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetPlain(t *testing.T) {
	target, err := ParseTarget("http://127.0.0.1:9000")
	require.NoError(t, err)
	assert.Equal(t, Plain, target.Scheme)
	assert.Equal(t, "127.0.0.1:9000", target.Authority)
	assert.Equal(t, "127.0.0.1", target.SNIHost)
}

func TestParseTargetTLS(t *testing.T) {
	target, err := ParseTarget("https://example.com:443")
	require.NoError(t, err)
	assert.Equal(t, TLS, target.Scheme)
	assert.Equal(t, "example.com:443", target.Authority)
	assert.Equal(t, "example.com", target.SNIHost)
}

func TestParseTargetNoScheme(t *testing.T) {
	target, err := ParseTarget("localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, Plain, target.Scheme)
	assert.Equal(t, "localhost", target.SNIHost)
}

func TestParseTargetNoPort(t *testing.T) {
	target, err := ParseTarget("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", target.Authority)
	assert.Equal(t, "example.com", target.SNIHost)
}

func TestParseTargetEmptyHostIsInvalid(t *testing.T) {
	_, err := ParseTarget("https://:443")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestParseTargetEmptyStringIsInvalid(t *testing.T) {
	_, err := ParseTarget("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}
