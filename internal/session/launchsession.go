// If you are AI: This file defines the launch session created at /launch time.
// It carries every per-stream parameter the RTSP handshake and data plane need.

package session

import (
	"encoding/binary"
	"encoding/hex"

	"glint/internal/crypto"
	"glint/internal/identity"
	"glint/internal/perm"
)

// RTSP URL schemes handed to clients in sessionUrl0.
const (
	SchemeCleartext = "rtsp://"
	SchemeEncrypted = "rtspenc://"
)

// LaunchSession is the per-stream state negotiated on /launch or /resume.
type LaunchSession struct {
	ID uint32

	GCMKey []byte
	IV     []byte

	AVPingPayload      string
	ControlConnectData uint32

	DeviceName string
	UniqueID   string
	Perm       perm.Mask

	HostAudio      bool
	Width          int
	Height         int
	FPSMilli       int
	GCMap          int
	SurroundInfo   int
	SurroundParams string
	EnableHDR      bool
	EnableSOPS     bool
	VirtualDisplay bool
	ScaleFactor    int

	RTSPCipher    *crypto.GCM
	RTSPURLScheme string

	ClientDoCmds   []identity.CommandEntry
	ClientUndoCmds []identity.CommandEntry

	InputOnly   bool
	DisplayGUID [16]byte
}

// SetStreamKeys installs the client's rikey and rikeyid, derives the IV and
// the random per-connection identifiers, and negotiates the RTSP cipher when
// the client advertised GCM capability (corever >= 1).
func (ls *LaunchSession) SetStreamKeys(rikeyHex string, rikeyID uint32, corever int) error {
	key, err := hex.DecodeString(rikeyHex)
	if err != nil {
		return err
	}
	ls.GCMKey = key

	// The IV is the big-endian key id over a zeroed tail.
	ls.IV = make([]byte, 16)
	binary.BigEndian.PutUint32(ls.IV, rikeyID)

	ls.AVPingPayload = hex.EncodeToString(crypto.Rand(8))
	ls.ControlConnectData = binary.BigEndian.Uint32(crypto.Rand(4))

	ls.RTSPURLScheme = SchemeCleartext
	if corever >= 1 {
		cipher, err := crypto.NewGCM(key)
		if err != nil {
			return err
		}
		ls.RTSPCipher = cipher
		ls.RTSPURLScheme = SchemeEncrypted
	}
	return nil
}

// Encrypted reports whether the session negotiated an encrypted control stream.
func (ls *LaunchSession) Encrypted() bool {
	return ls.RTSPCipher != nil
}
