// If you are AI: This file implements the four-phase pairing state machine.
// Phases advance monotonically; any violation drops the session to force a re-pair.

package pairing

import (
	"sync"

	"go.uber.org/zap"

	"glint/internal/crypto"
	"glint/internal/identity"
)

// Phase is the pairing handshake position for one client.
type Phase int

// Handshake phases in protocol order.
const (
	PhaseNone Phase = iota
	PhaseGetServerCert
	PhaseClientChallenge
	PhaseServerChallengeResp
	PhaseClientPairingSecret
)

// Result is the outcome of one pairing phase, shaped for the XML layer.
type Result struct {
	StatusCode    int
	StatusMessage string

	Paired            int
	PlainCert         string
	ChallengeResponse string
	PairingSecret     string
}

// session is the transient handshake state for one client unique id.
// Each phase populates exactly the fields the next phase needs.
type session struct {
	uniqueID string
	name     string
	certPEM  string

	phase Phase
	salt  string // raw hex string as supplied by the client

	cipher          *crypto.ECB
	serverSecret    []byte
	serverChallenge []byte
	clientHash      []byte

	// pending carries the phase-1 result once a PIN arrives asynchronously.
	pending chan Result
}

// Engine drives pairing sessions keyed by client unique id.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*session

	host     *identity.Host
	registry *identity.Registry
	otp      otpState
	logger   *zap.Logger

	// OnPaired, when set, observes every committed client.
	OnPaired func(identity.PairedClient)
}

// NewEngine creates a pairing engine bound to the host identity and the
// paired-client registry.
func NewEngine(host *identity.Host, registry *identity.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sessions: map[string]*session{},
		host:     host,
		registry: registry,
		logger:   logger.Named("pairing"),
	}
}

// HasPending reports whether any session is waiting for a PIN.
func (e *Engine) HasPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sess := range e.sessions {
		if sess.pending != nil {
			return true
		}
	}
	return false
}

// failLocked terminates a session with a diagnostic. The session is always
// removed so the client has to restart pairing from scratch.
func (e *Engine) failLocked(sess *session, msg string) Result {
	delete(e.sessions, sess.uniqueID)
	e.logger.Warn("pair attempt failed", zap.String("client", sess.uniqueID), zap.String("reason", msg))
	return Result{StatusCode: 400, StatusMessage: msg, Paired: 0}
}

// Clear drops every in-flight pairing session, releasing any handler still
// suspended on a pending PIN.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, sess := range e.sessions {
		if sess.pending != nil {
			sess.pending <- Result{StatusCode: 400, StatusMessage: "Pairing cancelled", Paired: 0}
		}
		delete(e.sessions, id)
	}
}
