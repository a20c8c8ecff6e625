// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package certs is dropperoni's certificate factory (C1): it produces
// or loads the single server leaf certificate the proxy terminates
// client TLS connections with. There is no ACME here and no renewal
// loop — a fresh key pair is minted once per process lifetime, or an
// operator-supplied PEM pair is loaded once at startup.
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"go.step.sm/crypto/pemutil"
)

// Material is an opaque (cert, key) pair: the DER-encoded X.509 leaf
// certificate and the DER-encoded PKCS#8 private key for the same key
// pair.
type Material struct {
	CertDER []byte
	KeyDER  []byte
}

// LoadError wraps a failure to load certificate material from disk.
type LoadError struct{ Err error }

func (e *LoadError) Error() string { return fmt.Sprintf("loading certificate material: %v", e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// KeygenError wraps a failure to synthesise a self-signed certificate.
type KeygenError struct{ Err error }

func (e *KeygenError) Error() string { return fmt.Sprintf("synthesising certificate: %v", e.Err) }
func (e *KeygenError) Unwrap() error { return e.Err }

// Obtain returns (cert_der, key_der) per spec §4.1: if both keyPath
// and certPath are non-empty, it loads them from disk; otherwise it
// synthesises a fresh self-signed leaf certificate whose Subject CN is
// issuer.
func Obtain(issuer, keyPath, certPath string) (Material, error) {
	if keyPath != "" && certPath != "" {
		return load(keyPath, certPath)
	}
	return synthesize(issuer)
}

// load reads a PEM PKCS#8 private key and a PEM X.509 certificate from
// disk, the way Caddy's own ACME bootstrap loads operator-supplied
// material — first record of each file wins.
func load(keyPath, certPath string) (Material, error) {
	key, err := pemutil.Read(keyPath, pemutil.WithFirstBlock())
	if err != nil {
		return Material{}, &LoadError{Err: fmt.Errorf("reading key %s: %w", keyPath, err)}
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return Material{}, &LoadError{Err: fmt.Errorf("encoding key %s: %w", keyPath, err)}
	}

	cert, err := pemutil.ReadCertificate(certPath, pemutil.WithFirstBlock())
	if err != nil {
		return Material{}, &LoadError{Err: fmt.Errorf("reading certificate %s: %w", certPath, err)}
	}

	return Material{CertDER: cert.Raw, KeyDER: keyDER}, nil
}

// synthesize generates a fresh 2048-bit RSA key pair and a self-signed
// leaf certificate, signed PKCS#1-SHA256, the way
// caddytls.newSelfSignedCertificate does for Caddy's own internal CA,
// simplified to a single leaf with no SAN (the spec's Target
// descriptor, not the certificate, carries the host information the
// proxy needs).
func synthesize(issuer string) (Material, error) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Material{}, &KeygenError{Err: fmt.Errorf("generating key: %w", err)}
	}

	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return Material{}, &KeygenError{Err: fmt.Errorf("generating serial number: %w", err)}
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: issuer},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &privKey.PublicKey, privKey)
	if err != nil {
		return Material{}, &KeygenError{Err: fmt.Errorf("creating certificate: %w", err)}
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(privKey)
	if err != nil {
		return Material{}, &KeygenError{Err: fmt.Errorf("encoding key: %w", err)}
	}

	return Material{CertDER: certDER, KeyDER: keyDER}, nil
}
