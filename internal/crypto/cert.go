// If you are AI: This file handles X.509 certificates for host and clients.
// Covers credential generation, signing, verification and the paired cert chain.

package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	// ErrNoCertificate is returned when PEM input holds no certificate.
	ErrNoCertificate = errors.New("crypto: no certificate in PEM data")

	// ErrNoPrivateKey is returned when PEM input holds no usable key.
	ErrNoPrivateKey = errors.New("crypto: no private key in PEM data")

	// ErrUnknownCert is returned when a peer certificate matches no paired client.
	ErrUnknownCert = errors.New("crypto: certificate not in chain")
)

// Creds is a PEM-encoded certificate and private key pair.
type Creds struct {
	CertPEM string
	KeyPEM  string
}

// GenCreds generates a self-signed RSA certificate for the given common name.
// The certificate is valid for twenty years, matching the lifetime clients
// expect from a gamestream host.
func GenCreds(cn string, bits int) (Creds, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return Creds{}, fmt.Errorf("crypto: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return Creds{}, fmt.Errorf("crypto: serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(20, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return Creds{}, fmt.Errorf("crypto: create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	return Creds{CertPEM: string(certPEM), KeyPEM: string(keyPEM)}, nil
}

// ParseCert parses the first certificate from PEM data.
func ParseCert(pemData []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemData)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrNoCertificate
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse certificate: %w", err)
	}
	return cert, nil
}

// ParseKey parses an RSA private key from PEM data, accepting both
// PKCS#1 and PKCS#8 encodings.
func ParseKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, ErrNoPrivateKey
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNoPrivateKey
	}
	return key, nil
}

// Signature returns the raw signature bytes embedded in a certificate.
// The pairing handshake hashes these on both sides.
func Signature(cert *x509.Certificate) []byte {
	return cert.Signature
}

// SignSHA256 signs data with the host private key (RSA PKCS#1 v1.5, SHA-256).
func SignSHA256(key *rsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig, nil
}

// VerifySHA256 verifies an RSA PKCS#1 v1.5 SHA-256 signature against the
// public key of cert.
func VerifySHA256(cert *x509.Certificate, data, sig []byte) bool {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

// CertChain holds the certificates of all paired clients and resolves
// a TLS peer certificate back to the client that owns it.
// Entries carry an opaque owner handle so callers can attach registry state.
type CertChain struct {
	mu    sync.RWMutex
	certs []chainEntry
}

type chainEntry struct {
	cert  *x509.Certificate
	owner interface{}
}

// Add registers a client certificate with its owner handle.
// Unparseable certificates are skipped; a paired client with a corrupt
// stored cert simply never verifies.
func (c *CertChain) Add(certPEM string, owner interface{}) {
	cert, err := ParseCert([]byte(certPEM))
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.certs = append(c.certs, chainEntry{cert: cert, owner: owner})
}

// Clear removes all certificates.
func (c *CertChain) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certs = nil
}

// Verify resolves a peer certificate to its owner handle.
// Client certificates are self-signed, so verification is identity:
// the presented certificate must byte-match a paired one.
func (c *CertChain) Verify(peer *x509.Certificate) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, entry := range c.certs {
		if entry.cert.Equal(peer) {
			return entry.owner, nil
		}
	}
	return nil, ErrUnknownCert
}

// Len returns the number of registered certificates.
func (c *CertChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.certs)
}
