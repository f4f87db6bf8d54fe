// If you are AI: This file implements the registry of live streaming sessions.
// Sessions are keyed by paired-client UUID; termination joins the data plane.

package session

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"glint/internal/bitrate"
	"glint/internal/perm"
	"glint/internal/stream"
)

// Config tunes the controllers installed into new sessions.
type Config struct {
	InitialBitrateKbps int
	MinBitrateKbps     int
	MaxBitrateKbps     int
	BitrateOptions     bitrate.Options
}

// Registry holds every live streaming session.
// A client UUID maps to at most one session; the launch-session id counter
// is monotonic across the process lifetime.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idCounter atomic.Uint32
	cfg       Config
	logger    *zap.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InitialBitrateKbps == 0 {
		cfg.InitialBitrateKbps = 20000
	}
	if cfg.MinBitrateKbps == 0 {
		cfg.MinBitrateKbps = bitrate.DefaultMinKbps
	}
	if cfg.MaxBitrateKbps == 0 {
		cfg.MaxBitrateKbps = bitrate.DefaultMaxKbps
	}
	return &Registry{
		sessions: map[string]*Session{},
		cfg:      cfg,
		logger:   logger.Named("sessions"),
	}
}

// NextLaunchID returns the next monotonic launch-session id.
func (r *Registry) NextLaunchID() uint32 {
	return r.idCounter.Add(1)
}

// Alloc creates and starts a session for the launch session, installing a
// bitrate controller as the data plane's feedback consumer. An existing
// session for the same client is stopped first: one session per client.
func (r *Registry) Alloc(launch *LaunchSession) *Session {
	controller := bitrate.New(
		r.cfg.InitialBitrateKbps, r.cfg.MinBitrateKbps, r.cfg.MaxBitrateKbps,
		r.cfg.BitrateOptions, r.logger)
	plane := stream.New(controller, launch.RTSPCipher, launch.AVPingPayload, r.logger)

	sess := newSession(launch, plane, r.logger)

	r.mu.Lock()
	prev := r.sessions[launch.UniqueID]
	r.sessions[launch.UniqueID] = sess
	r.mu.Unlock()

	if prev != nil {
		r.logger.Info("replacing live session for client", zap.String("client", launch.UniqueID))
		prev.stop(false)
		prev.Wait()
	}

	plane.Start()
	r.logger.Info("session allocated",
		zap.Uint32("id", launch.ID),
		zap.String("client", launch.UniqueID),
		zap.Bool("encrypted", launch.Encrypted()))
	return sess
}

// Lookup returns the live session for a client UUID, or nil.
func (r *Registry) Lookup(uuid string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[uuid]
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// AllUUIDs returns the client UUIDs with live sessions.
func (r *Registry) AllUUIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sessions))
	for uuid := range r.sessions {
		out = append(out, uuid)
	}
	return out
}

// Stop terminates one session and releases its slot.
func (r *Registry) Stop(sess *Session, graceful bool) {
	sess.stop(graceful)
	sess.Wait()

	r.mu.Lock()
	if r.sessions[sess.ClientUUID()] == sess {
		delete(r.sessions, sess.ClientUUID())
	}
	r.mu.Unlock()
}

// StopByUUID terminates the session of the given client, if any.
func (r *Registry) StopByUUID(uuid string, graceful bool) bool {
	sess := r.Lookup(uuid)
	if sess == nil {
		return false
	}
	r.Stop(sess, graceful)
	return true
}

// TerminateAll gracefully stops every session. When it returns, each member
// session has observed STOPPING and its data-plane threads are joined.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	members := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		members = append(members, sess)
	}
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	for _, sess := range members {
		sess.stop(true)
	}
	for _, sess := range members {
		sess.Wait()
	}
}

// UpdateInfo propagates a client rename or permission change into the live
// session. Returns false when the client has no session.
func (r *Registry) UpdateInfo(uuid, name string, mask perm.Mask) bool {
	sess := r.Lookup(uuid)
	if sess == nil {
		return false
	}
	sess.UpdateInfo(name, mask)

	// A revoked view permission stopped the session; release its slot.
	if sess.State() == StateStopped {
		r.mu.Lock()
		if r.sessions[uuid] == sess {
			delete(r.sessions, uuid)
		}
		r.mu.Unlock()
	}
	return true
}
