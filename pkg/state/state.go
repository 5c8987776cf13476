// Package state remembers the last viewed event per data source so that a
// later run can resume where the previous one stopped.
//
// Positions are keyed by the data source location. The CLI stores them as
// JSON files under the user config directory:
//
//	store, err := state.NewFileStore("") // ~/.config/evdisplay/state/
//	pos, err := store.Get(ctx, "/data/run42.root")
//	if pos != nil {
//	    // resume at pos.EventID
//	}
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// MaxAge is how long an untouched position is kept.
const MaxAge = 30 * 24 * time.Hour

// Position is the last viewed event of one data source.
type Position struct {
	Source    string    `json:"source"`
	Geometry  string    `json:"geometry,omitempty"`
	EventID   int64     `json:"event_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the position is older than MaxAge.
func (p *Position) IsExpired() bool {
	return time.Since(p.UpdatedAt) > MaxAge
}

// key derives the file-safe key of a source location. Local paths are made
// absolute first so relative invocations resolve to the same entry.
func key(source string) string {
	if abs, err := filepath.Abs(source); err == nil && filepath.IsLocal(source) {
		source = abs
	}
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:12])
}
