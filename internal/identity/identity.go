// If you are AI: This file manages the host identity and its credentials.
// Keypair and certificate are generated on first run and reused afterwards.

package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"

	"glint/internal/crypto"
	"glint/internal/fileio"
)

// Host is the process-wide host identity: a stable unique id plus the
// certificate and key every TLS listener and pairing exchange uses.
type Host struct {
	UniqueID string

	CertPEM string
	KeyPEM  string

	cert *x509.Certificate
	key  *rsa.PrivateKey
}

// LoadOrCreateCreds loads the host certificate and key from certFile and
// keyFile, generating and persisting a fresh pair when either is missing.
func LoadOrCreateCreds(certFile, keyFile, cn string) (certPEM, keyPEM string, err error) {
	certData, certErr := os.ReadFile(certFile)
	keyData, keyErr := os.ReadFile(keyFile)
	if certErr == nil && keyErr == nil {
		return string(certData), string(keyData), nil
	}

	creds, err := crypto.GenCreds(cn, 2048)
	if err != nil {
		return "", "", fmt.Errorf("generate host credentials: %w", err)
	}

	if err := fileio.WriteFile(certFile, []byte(creds.CertPEM)); err != nil {
		return "", "", err
	}
	if err := fileio.WriteFile(keyFile, []byte(creds.KeyPEM)); err != nil {
		return "", "", err
	}
	return creds.CertPEM, creds.KeyPEM, nil
}

// NewHost builds a Host from PEM credentials and a unique id.
func NewHost(uniqueID, certPEM, keyPEM string) (*Host, error) {
	cert, err := crypto.ParseCert([]byte(certPEM))
	if err != nil {
		return nil, fmt.Errorf("host certificate: %w", err)
	}
	key, err := crypto.ParseKey([]byte(keyPEM))
	if err != nil {
		return nil, fmt.Errorf("host key: %w", err)
	}

	return &Host{
		UniqueID: uniqueID,
		CertPEM:  certPEM,
		KeyPEM:   keyPEM,
		cert:     cert,
		key:      key,
	}, nil
}

// Cert returns the parsed host certificate.
func (h *Host) Cert() *x509.Certificate {
	return h.cert
}

// Key returns the host private key.
func (h *Host) Key() *rsa.PrivateKey {
	return h.key
}

// Sign signs data with the host key (SHA-256, PKCS#1 v1.5).
func (h *Host) Sign(data []byte) ([]byte, error) {
	return crypto.SignSHA256(h.key, data)
}
