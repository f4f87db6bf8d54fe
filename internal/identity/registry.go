// If you are AI: This file implements the paired-client registry and its state file.
// Mutations are serialised, persisted atomically and reloaded for crash safety.

package identity

import (
	"crypto/x509"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"glint/internal/crypto"
	"glint/internal/perm"
)

// CommandEntry is a client-scoped command with an elevation flag.
type CommandEntry struct {
	Cmd      string `json:"cmd"`
	Elevated bool   `json:"elevated"`
}

// PairedClient is a remote peer whose certificate the host has committed.
type PairedClient struct {
	Name                    string         `json:"name"`
	UUID                    string         `json:"uuid"`
	Cert                    string         `json:"cert"`
	DisplayMode             string         `json:"display_mode"`
	Perm                    perm.Mask      `json:"perm"`
	EnableLegacyOrdering    bool           `json:"enable_legacy_ordering"`
	AllowClientCommands     bool           `json:"allow_client_commands"`
	AlwaysUseVirtualDisplay bool           `json:"always_use_virtual_display"`
	DoCmds                  []CommandEntry `json:"do,omitempty"`
	UndoCmds                []CommandEntry `json:"undo,omitempty"`
}

// stateFile is the persisted shape of the registry.
type stateFile struct {
	Root stateRoot `json:"root"`
}

type stateRoot struct {
	UniqueID     string            `json:"uniqueid"`
	NamedDevices []json.RawMessage `json:"named_devices,omitempty"`

	// Devices carries the legacy pre-uuid format, read once and migrated.
	Devices []legacyDevice `json:"devices,omitempty"`
}

type legacyDevice struct {
	Certs []string `json:"certs,omitempty"`
}

// Registry is the process-wide paired-client store.
// Reads get value snapshots; all mutations are serialised behind one mutex
// and followed by a persist-and-reload cycle so the on-disk state is always
// what a crash recovery would see.
type Registry struct {
	mu       sync.Mutex
	path     string
	uniqueID string
	clients  []*PairedClient
	chain    *crypto.CertChain
	logger   *zap.Logger
	persist  bool
}

// NewRegistry creates a registry backed by the given state file.
// When persist is false (fresh-state runs) nothing is written to disk.
func NewRegistry(path string, persist bool, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		path:    path,
		chain:   &crypto.CertChain{},
		logger:  logger.Named("clients"),
		persist: persist,
	}
}

// UniqueID returns the host unique id loaded or generated by Load.
func (r *Registry) UniqueID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uniqueID
}

// Add commits a freshly paired client. A client added while the registry
// is empty is granted the full permission mask; later ones get the default.
func (r *Registry) Add(name, certPEM string) (*PairedClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mask := perm.Default
	if len(r.clients) == 0 {
		mask = perm.All
	}

	// Parentheses collide with the collision-suffix syntax in names.
	name = strings.Map(func(c rune) rune {
		switch c {
		case '(':
			return '['
		case ')':
			return ']'
		}
		return c
	}, name)

	client := &PairedClient{
		Name:                 name,
		UUID:                 uuid.NewString(),
		Cert:                 certPEM,
		Perm:                 mask,
		EnableLegacyOrdering: true,
		AllowClientCommands:  true,
	}
	r.clients = append(r.clients, client)

	if err := r.saveLocked(); err != nil {
		return nil, err
	}

	// Reload may have renamed the entry; return the stored value.
	for _, stored := range r.clients {
		if stored.UUID == client.UUID {
			return stored, nil
		}
	}
	return client, nil
}

// Update rewrites a client's mutable fields. Returns false when the UUID
// is not paired.
func (r *Registry) Update(id, name, displayMode string, mask perm.Mask, doCmds, undoCmds []CommandEntry, legacyOrdering, allowClientCommands, alwaysVirtual bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.clients {
		if client.UUID != id {
			continue
		}
		client.Name = name
		client.DisplayMode = displayMode
		client.Perm = mask.Clamp()
		client.DoCmds = doCmds
		client.UndoCmds = undoCmds
		client.EnableLegacyOrdering = legacyOrdering
		client.AllowClientCommands = allowClientCommands
		client.AlwaysUseVirtualDisplay = alwaysVirtual
		return true, r.saveLocked()
	}
	return false, nil
}

// Unpair removes a client by UUID. Returns true when an entry was removed.
func (r *Registry) Unpair(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	kept := r.clients[:0]
	for _, client := range r.clients {
		if client.UUID == id {
			removed = true
			continue
		}
		kept = append(kept, client)
	}
	r.clients = kept
	return removed, r.saveLocked()
}

// UnpairAll removes every paired client.
func (r *Registry) UnpairAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = nil
	return r.saveLocked()
}

// List returns a snapshot of all paired clients.
func (r *Registry) List() []PairedClient {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PairedClient, len(r.clients))
	for i, client := range r.clients {
		out[i] = *client
	}
	return out
}

// Find returns a snapshot of the client with the given UUID.
func (r *Registry) Find(id string) (PairedClient, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.clients {
		if client.UUID == id {
			return *client, true
		}
	}
	return PairedClient{}, false
}

// Empty reports whether no client is currently paired.
func (r *Registry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients) == 0
}

// Count returns the number of paired clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// VerifyPeer resolves a TLS peer certificate to the paired client that
// owns it, or an error when the certificate is unknown.
func (r *Registry) VerifyPeer(peer *x509.Certificate) (PairedClient, error) {
	owner, err := r.chain.Verify(peer)
	if err != nil {
		return PairedClient{}, err
	}

	client, ok := owner.(*PairedClient)
	if !ok {
		return PairedClient{}, crypto.ErrUnknownCert
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return *client, nil
}
