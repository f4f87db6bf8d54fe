// If you are AI: This file defines one live streaming session and its lifecycle.
// State transitions are monotonic; stop on a stopped session is a no-op.

package session

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"glint/internal/perm"
	"glint/internal/stream"
)

// State is the lifecycle position of a session.
type State int32

// Lifecycle states. A session moves from starting to running, then to
// stopping and stopped.
const (
	StateStopped State = iota
	StateStopping
	StateStarting
	StateRunning
)

// String names the state for logs.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStopping:
		return "stopping"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

// Session is one live stream bound to a paired client.
// The state field is atomic for lock-free observation; transitions are
// driven by the single RTSP thread that owns the session.
type Session struct {
	Launch *LaunchSession

	state atomic.Int32

	mu         sync.Mutex
	clientName string
	clientPerm perm.Mask

	plane *stream.DataPlane

	// drained closes once the data plane threads are joined.
	drained  chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

// newSession builds a session in the starting state.
func newSession(launch *LaunchSession, plane *stream.DataPlane, logger *zap.Logger) *Session {
	s := &Session{
		Launch:     launch,
		clientName: launch.DeviceName,
		clientPerm: launch.Perm,
		plane:      plane,
		drained:    make(chan struct{}),
		logger:     logger,
	}
	s.state.Store(int32(StateStarting))
	return s
}

// State returns the current lifecycle state without locking.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SetRunning marks the session live once the RTSP handshake completes.
// Only a starting session can become running.
func (s *Session) SetRunning() bool {
	return s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
}

// Plane exposes the session's data-plane boundary.
func (s *Session) Plane() *stream.DataPlane {
	return s.plane
}

// ClientUUID returns the paired client this session belongs to.
func (s *Session) ClientUUID() string {
	return s.Launch.UniqueID
}

// ClientName returns the current device name.
func (s *Session) ClientName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientName
}

// ClientPerm returns the session's effective permission mask.
func (s *Session) ClientPerm() perm.Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientPerm
}

// UpdateInfo applies a registry-side rename or permission change to the
// live session. Removing the view permission stops the session: the peer
// no longer has the right to see the stream.
func (s *Session) UpdateInfo(name string, mask perm.Mask) {
	s.mu.Lock()
	s.clientName = name
	s.clientPerm = mask
	s.mu.Unlock()

	if !mask.HasAny(perm.AllowView) {
		s.logger.Info("view permission revoked, stopping session",
			zap.String("client", s.ClientUUID()))
		s.stop(true)
	}
}

// stop drives the session to STOPPED. Graceful stops let in-flight frames
// drain before the data plane joins; immediate stops don't. Calling stop on
// a stopped or stopping session is a no-op.
func (s *Session) stop(graceful bool) {
	for {
		current := State(s.state.Load())
		if current == StateStopped || current == StateStopping {
			return
		}
		if s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
			break
		}
	}

	s.stopOnce.Do(func() {
		if graceful {
			// Empty the queue of pending encoder events; nothing reads
			// them once the session stops.
		drain:
			for {
				select {
				case <-s.plane.Events():
				default:
					break drain
				}
			}
		}
		s.plane.Stop()
		s.state.Store(int32(StateStopped))
		close(s.drained)
	})
}

// Wait blocks until the session's data-plane threads are joined.
func (s *Session) Wait() {
	<-s.drained
}
