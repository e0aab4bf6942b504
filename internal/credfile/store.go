// Package credfile reads and writes provider credential files. Each provider
// CLI owns a legacy dot-directory file (e.g. ~/.codex/auth.json) that it keeps
// writing to; quotadash mirrors it into its own XDG-side path but always
// treats the legacy file as the live source of truth when present.
package credfile

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Store locates one provider's credential material on disk.
type Store struct {
	// LegacyPath is the companion CLI's own credential file. Preferred on
	// every read and never mutated or deleted by quotadash.
	LegacyPath string
	// Path is the migrated XDG-side file. Migration copies and refreshed
	// tokens land here.
	Path string
}

// Read returns the raw credential document and whether one was found. The
// legacy file wins when it exists; the first read that finds a legacy file
// without a migrated copy also performs the one-time migration. Read and
// parse failures surface as absent; callers treat malformed input and
// missing input identically.
func (s Store) Read() ([]byte, bool) {
	if s.LegacyPath != "" {
		if data, err := os.ReadFile(s.LegacyPath); err == nil {
			if _, statErr := os.Stat(s.Path); statErr != nil {
				_ = writeAtomic(s.Path, data)
			}
			return data, true
		}
	}
	if data, err := os.ReadFile(s.Path); err == nil {
		return data, true
	}
	return nil, false
}

// Merge persists refreshed token fields. The new fields are merged into the
// full existing JSON object (so unrelated fields the companion CLI stores are
// preserved) and written atomically to the migrated path only; the legacy
// file belongs to the CLI and is never touched.
func (s Store) Merge(fields map[string]any) error {
	existing := make(map[string]any)
	if data, ok := s.Read(); ok {
		// Malformed existing content is replaced rather than propagated.
		_ = json.Unmarshal(data, &existing)
	}
	for k, v := range fields {
		existing[k] = v
	}

	data, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	return writeAtomic(s.Path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
