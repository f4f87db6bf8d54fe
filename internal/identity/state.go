// If you are AI: This file persists the paired-client registry state file.
// Legacy device entries migrate to named devices with fresh UUIDs.

package identity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"glint/internal/fileio"
	"glint/internal/perm"
)

// Load reads the state file, migrating legacy entries. A missing file
// bootstraps a fresh host unique id.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

// loadLocked does the Load work with the registry lock held.
func (r *Registry) loadLocked() error {
	if !fileio.Exists(r.path) {
		r.logger.Info("state file does not exist, generating host identity", zap.String("path", r.path))
		r.uniqueID = uuid.NewString()
		r.clients = nil
		r.rebuildChainLocked()
		return nil
	}

	var state stateFile
	if err := fileio.ReadJSON(r.path, &state); err != nil {
		return err
	}

	if state.Root.UniqueID == "" {
		r.uniqueID = uuid.NewString()
	} else {
		r.uniqueID = state.Root.UniqueID
	}

	var clients []*PairedClient

	// Import from the legacy format: bare cert lists become full entries
	// with a fresh UUID and full permissions.
	for _, device := range state.Root.Devices {
		for _, cert := range device.Certs {
			clients = append(clients, &PairedClient{
				Cert:                 cert,
				UUID:                 uuid.NewString(),
				Perm:                 perm.All,
				EnableLegacyOrdering: true,
				AllowClientCommands:  true,
			})
		}
	}

	for _, raw := range state.Root.NamedDevices {
		client := &PairedClient{
			Perm:                 perm.All,
			EnableLegacyOrdering: true,
			AllowClientCommands:  true,
		}
		if err := json.Unmarshal(raw, client); err != nil {
			r.logger.Warn("skipping unparseable client entry", zap.Error(err))
			continue
		}
		client.Perm = client.Perm.Clamp()
		clients = append(clients, client)
	}

	r.clients = clients
	r.rebuildChainLocked()
	return nil
}

// rebuildChainLocked re-registers every client cert for TLS verification.
func (r *Registry) rebuildChainLocked() {
	r.chain.Clear()
	for _, client := range r.clients {
		r.chain.Add(client.Cert, client)
	}
}

// saveLocked persists the registry then reloads it, deduplicating certs and
// resolving name collisions with " (N)" suffixes along the way.
func (r *Registry) saveLocked() error {
	if !r.persist {
		r.rebuildChainLocked()
		return nil
	}

	seenCerts := map[string]bool{}
	nameCounts := map[string]int{}
	devices := make([]json.RawMessage, 0, len(r.clients))

	for _, client := range r.clients {
		// Only write each unique certificate once.
		if seenCerts[client.Cert] {
			continue
		}
		seenCerts[client.Cert] = true

		out := *client
		base := client.Name
		// Strip any previous collision suffix before re-numbering.
		if pos := strings.Index(base, " ("); pos >= 0 {
			base = base[:pos]
		}
		count := nameCounts[base]
		nameCounts[base]++
		if count > 0 {
			out.Name = fmt.Sprintf("%s (%d)", base, count+1)
		} else {
			out.Name = base
		}

		encoded, err := json.Marshal(&out)
		if err != nil {
			return fmt.Errorf("encode client %s: %w", client.UUID, err)
		}
		devices = append(devices, encoded)
	}

	state := stateFile{Root: stateRoot{UniqueID: r.uniqueID, NamedDevices: devices}}
	if err := fileio.WriteJSON(r.path, &state); err != nil {
		return err
	}
	return r.loadLocked()
}

