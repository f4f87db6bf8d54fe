// If you are AI: This file provides the in-test pairing client used by the
// engine tests; it drives all four phases the way a real peer would.

package pairing

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"path/filepath"
	"testing"

	"glint/internal/crypto"
	"glint/internal/identity"
)

// testClient is the remote side of the handshake.
type testClient struct {
	uniqueID string
	certPEM  string
	cert     *x509.Certificate
	key      *rsa.PrivateKey

	cipher          *crypto.ECB
	challenge       []byte
	secret          []byte
	serverChallenge []byte
	serverCertSig   []byte
}

func newTestClient(t *testing.T, uniqueID string) *testClient {
	t.Helper()
	creds, err := crypto.GenCreds("moonlight-client", 2048)
	if err != nil {
		t.Fatalf("GenCreds: %v", err)
	}
	cert, _ := crypto.ParseCert([]byte(creds.CertPEM))
	key, _ := crypto.ParseKey([]byte(creds.KeyPEM))
	return &testClient{
		uniqueID: uniqueID,
		certPEM:  creds.CertPEM,
		cert:     cert,
		key:      key,
	}
}

// saltHex is the 000102...0f test vector salt.
func saltHex() string {
	salt := make([]byte, 16)
	for i := range salt {
		salt[i] = byte(i)
	}
	return hex.EncodeToString(salt)
}

func (c *testClient) deriveCipher(t *testing.T, pin string) {
	t.Helper()
	raw, _ := hex.DecodeString(saltHex())
	var salt [16]byte
	copy(salt[:], raw)
	key := crypto.DeriveAESKey(salt, pin)
	cipher, err := crypto.NewECB(key[:], false)
	if err != nil {
		t.Fatalf("NewECB: %v", err)
	}
	c.cipher = cipher
}

func newTestEngine(t *testing.T) (*Engine, *identity.Registry, *identity.Host) {
	t.Helper()

	creds, err := crypto.GenCreds("glint-host", 2048)
	if err != nil {
		t.Fatalf("GenCreds: %v", err)
	}
	host, err := identity.NewHost("host-uuid", creds.CertPEM, creds.KeyPEM)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}

	registry := identity.NewRegistry(filepath.Join(t.TempDir(), "state.json"), true, nil)
	if err := registry.Load(); err != nil {
		t.Fatalf("registry load: %v", err)
	}

	return NewEngine(host, registry, nil), registry, host
}

// pairWithPin drives the complete handshake. Returns the final result.
func pairWithPin(t *testing.T, e *Engine, c *testClient, pin string, submit bool) Result {
	t.Helper()

	// Phase 1: getservercert with an asynchronously supplied PIN.
	res, pending := e.GetServerCert(c.uniqueID, "TestDevice", saltHex(), hex.EncodeToString([]byte(c.certPEM)), "")
	if submit {
		if pending == nil {
			t.Fatalf("phase 1 did not suspend for a PIN: %+v", res)
		}
		if !e.SubmitPin(pin, "") {
			t.Fatal("SubmitPin found no pending session")
		}
		res = <-pending
	}
	if res.StatusCode != 200 || res.Paired != 1 {
		t.Fatalf("phase 1 = %+v", res)
	}

	serverCertPEM, err := hex.DecodeString(res.PlainCert)
	if err != nil {
		t.Fatalf("plaincert decode: %v", err)
	}
	serverCert, err := crypto.ParseCert(serverCertPEM)
	if err != nil {
		t.Fatalf("plaincert parse: %v", err)
	}
	c.serverCertSig = crypto.Signature(serverCert)
	c.deriveCipher(t, pin)

	// Phase 2: encrypted random challenge.
	c.challenge = crypto.Rand(16)
	encChallenge, _ := c.cipher.Encrypt(c.challenge)
	res = e.ClientChallenge(c.uniqueID, hex.EncodeToString(encChallenge))
	if res.StatusCode != 200 {
		return res
	}

	// Decrypt: hash(challenge || server cert sig || server secret) || server challenge.
	encResponse, _ := hex.DecodeString(res.ChallengeResponse)
	plain, err := c.cipher.Decrypt(encResponse)
	if err != nil {
		t.Fatalf("phase 2 decrypt: %v", err)
	}
	if len(plain) != 48 {
		t.Fatalf("phase 2 plaintext length = %d, want 48", len(plain))
	}
	c.serverChallenge = plain[32:48]

	// Phase 3: send hash(server challenge || client cert sig || client secret).
	c.secret = crypto.Rand(16)
	material := append(append(append([]byte(nil), c.serverChallenge...), crypto.Signature(c.cert)...), c.secret...)
	digest := crypto.Hash(material)
	encHash, _ := c.cipher.Encrypt(digest[:])
	res = e.ServerChallengeResp(c.uniqueID, hex.EncodeToString(encHash))
	if res.StatusCode != 200 {
		return res
	}

	// Verify the server's pairing secret before finishing.
	pairingSecret, _ := hex.DecodeString(res.PairingSecret)
	if len(pairingSecret) <= 16 {
		t.Fatalf("pairing secret length = %d", len(pairingSecret))
	}
	if !crypto.VerifySHA256(serverCert, pairingSecret[:16], pairingSecret[16:]) {
		t.Fatal("server pairing secret signature invalid")
	}

	// Phase 4: client secret plus signature.
	sig, err := crypto.SignSHA256(c.key, c.secret)
	if err != nil {
		t.Fatalf("sign client secret: %v", err)
	}
	return e.ClientPairingSecret(c.uniqueID, hex.EncodeToString(append(c.secret, sig...)))
}

