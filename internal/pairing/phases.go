// If you are AI: This file implements the four pairing phases.
// Each phase consumes exactly the state its predecessor left behind.

package pairing

import (
	"bytes"
	"encoding/hex"

	"go.uber.org/zap"

	"glint/internal/crypto"
)

// GetServerCert handles phrase=getservercert. The returned channel is non-nil
// when the PIN arrives asynchronously via SubmitPin: the caller must then
// hold the HTTP response open until the channel yields.
func (e *Engine) GetServerCert(uniqueID, deviceName, saltHex, clientCertHex, otpAuthHex string) (Result, <-chan Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if deviceName == "roth" {
		deviceName = "Legacy Moonlight Client"
	}

	certPEM, err := hex.DecodeString(clientCertHex)
	if err != nil {
		return Result{StatusCode: 400, StatusMessage: "Invalid clientcert parameter", Paired: 0}, nil
	}

	sess, exists := e.sessions[uniqueID]
	if !exists {
		sess = &session{
			uniqueID: uniqueID,
			name:     deviceName,
			certPEM:  string(certPEM),
			salt:     saltHex,
		}
		e.sessions[uniqueID] = sess
	} else if sess.pending != nil {
		// A second arrival while the first still waits for its PIN is a
		// protocol violation; release the parked handler and drop the session.
		pending := sess.pending
		sess.pending = nil
		pending <- Result{StatusCode: 400, StatusMessage: "Pairing session replaced", Paired: 0}
		return e.failLocked(sess, "Concurrent call to getservercert"), nil
	}

	if otpAuthHex != "" {
		return e.getServerCertOTPLocked(sess, otpAuthHex), nil
	}

	// No OTP: the PIN arrives out of band through the admin API. Park the
	// session and let the handler suspend on the channel.
	if sess.phase != PhaseNone {
		return e.failLocked(sess, "Out of order call to getservercert"), nil
	}
	sess.pending = make(chan Result, 1)
	return Result{}, sess.pending
}

// getServerCertOTPLocked validates a one-time PIN submission. When the OTP
// doesn't match, the handshake still proceeds under a random PIN so the
// attacker can't tell which step failed.
func (e *Engine) getServerCertOTPLocked(sess *session, otpAuthHex string) Result {
	pin, name, ok := e.otp.take(sess.salt, otpAuthHex)
	if ok {
		if name != "" {
			sess.name = name
		}
		return e.serverCertLocked(sess, pin)
	}

	// Always return positive; the bogus key derived from a random PIN
	// fails the later phases, so attackers can't tell an expired OTP
	// from a wrong one.
	return e.serverCertLocked(sess, crypto.RandAlphabet(16, ""))
}

// serverCertLocked completes phase one with the supplied PIN.
func (e *Engine) serverCertLocked(sess *session, pin string) Result {
	if sess.phase != PhaseNone {
		return e.failLocked(sess, "Out of order call to getservercert")
	}
	sess.phase = PhaseGetServerCert

	if len(sess.salt) < 32 {
		return e.failLocked(sess, "Salt too short")
	}

	saltRaw, err := hex.DecodeString(sess.salt[:32])
	if err != nil {
		return e.failLocked(sess, "Invalid salt parameter")
	}
	var salt [16]byte
	copy(salt[:], saltRaw)

	key := crypto.DeriveAESKey(salt, pin)
	cipher, err := crypto.NewECB(key[:], false)
	if err != nil {
		return e.failLocked(sess, "Cipher init failed")
	}
	sess.cipher = cipher

	return Result{
		StatusCode: 200,
		Paired:     1,
		PlainCert:  hex.EncodeToString([]byte(e.host.CertPEM)),
	}
}

// SubmitPin feeds a PIN into a pending session; when several are pending,
// which one receives it is not defined. The optional name
// overrides the device name recorded in phase one.
func (e *Engine) SubmitPin(pin, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sess *session
	for _, s := range e.sessions {
		if s.pending != nil {
			sess = s
			break
		}
	}
	if sess == nil {
		return false
	}

	if name != "" {
		sess.name = name
	}

	pending := sess.pending
	sess.pending = nil
	pending <- e.serverCertLocked(sess, pin)
	return true
}

// ClientChallenge handles the second phase.
func (e *Engine) ClientChallenge(uniqueID, challengeHex string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[uniqueID]
	if !ok {
		return Result{StatusCode: 400, StatusMessage: "Invalid uniqueid", Paired: 0}
	}

	if sess.phase != PhaseGetServerCert {
		return e.failLocked(sess, "Out of order call to clientchallenge")
	}
	sess.phase = PhaseClientChallenge

	if sess.cipher == nil {
		return e.failLocked(sess, "Cipher key not set")
	}

	challenge, err := hex.DecodeString(challengeHex)
	if err != nil {
		return e.failLocked(sess, "Invalid clientchallenge parameter")
	}
	decrypted, err := sess.cipher.Decrypt(challenge)
	if err != nil {
		return e.failLocked(sess, "Invalid challenge length")
	}

	serverSecret := crypto.Rand(16)
	serverChallenge := crypto.Rand(16)

	// hash(decrypted challenge || server cert signature || server secret)
	material := append(append(decrypted, crypto.Signature(e.host.Cert())...), serverSecret...)
	digest := crypto.Hash(material)

	plaintext := append(digest[:], serverChallenge...)
	encrypted, err := sess.cipher.Encrypt(plaintext)
	if err != nil {
		return e.failLocked(sess, "Challenge encryption failed")
	}

	sess.serverSecret = serverSecret
	sess.serverChallenge = serverChallenge

	return Result{
		StatusCode:        200,
		Paired:            1,
		ChallengeResponse: hex.EncodeToString(encrypted),
	}
}

// ServerChallengeResp handles the third phase.
func (e *Engine) ServerChallengeResp(uniqueID, responseHex string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[uniqueID]
	if !ok {
		return Result{StatusCode: 400, StatusMessage: "Invalid uniqueid", Paired: 0}
	}

	if sess.phase != PhaseClientChallenge {
		return e.failLocked(sess, "Out of order call to serverchallengeresp")
	}
	sess.phase = PhaseServerChallengeResp

	if sess.cipher == nil || len(sess.serverSecret) == 0 {
		return e.failLocked(sess, "Cipher key or serversecret not set")
	}

	encrypted, err := hex.DecodeString(responseHex)
	if err != nil {
		return e.failLocked(sess, "Invalid serverchallengeresp parameter")
	}
	decrypted, err := sess.cipher.Decrypt(encrypted)
	if err != nil {
		return e.failLocked(sess, "Invalid response length")
	}
	sess.clientHash = decrypted

	sig, err := e.host.Sign(sess.serverSecret)
	if err != nil {
		return e.failLocked(sess, "Signing failed")
	}

	return Result{
		StatusCode:    200,
		Paired:        1,
		PairingSecret: hex.EncodeToString(append(append([]byte(nil), sess.serverSecret...), sig...)),
	}
}

// ClientPairingSecret handles the final phase and commits the client on
// success. The session is removed either way.
func (e *Engine) ClientPairingSecret(uniqueID, secretHex string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[uniqueID]
	if !ok {
		return Result{StatusCode: 400, StatusMessage: "Invalid uniqueid", Paired: 0}
	}

	if sess.phase != PhaseServerChallengeResp {
		return e.failLocked(sess, "Out of order call to clientpairingsecret")
	}
	sess.phase = PhaseClientPairingSecret

	pairingSecret, err := hex.DecodeString(secretHex)
	if err != nil {
		return e.failLocked(sess, "Invalid clientpairingsecret parameter")
	}
	if len(pairingSecret) <= 16 {
		return e.failLocked(sess, "Client pairing secret too short")
	}
	secret, sig := pairingSecret[:16], pairingSecret[16:]

	clientCert, err := crypto.ParseCert([]byte(sess.certPEM))
	if err != nil {
		return e.failLocked(sess, "Invalid client certificate")
	}

	// hash(server challenge || client cert signature || secret)
	material := append(append(append([]byte(nil), sess.serverChallenge...), crypto.Signature(clientCert)...), secret...)
	digest := crypto.Hash(material)

	sameHash := bytes.Equal(digest[:], sess.clientHash)
	verified := crypto.VerifySHA256(clientCert, secret, sig)

	delete(e.sessions, uniqueID)

	if !sameHash || !verified {
		e.logger.Warn("pair attempt failed",
			zap.Bool("same_hash", sameHash), zap.Bool("verify", verified))
		return Result{StatusCode: 200, Paired: 0}
	}

	client, err := e.registry.Add(sess.name, sess.certPEM)
	if err != nil {
		e.logger.Error("couldn't persist paired client", zap.Error(err))
		return Result{StatusCode: 200, Paired: 0}
	}

	e.logger.Info("client paired", zap.String("name", client.Name), zap.String("uuid", client.UUID))
	if e.OnPaired != nil {
		e.OnPaired(*client)
	}
	return Result{StatusCode: 200, Paired: 1}
}

