// Package state persists and restores orchestrator state: the roster,
// the pipeline parameters, and a snapshot of every session. Snapshots
// are plain JSON guarded by a sibling file lock so concurrent processes
// cannot interleave writes.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Fasthei/charmine/core"
	"github.com/Fasthei/charmine/pipeline"
)

// OrchestratorState is the on-disk snapshot format.
type OrchestratorState struct {
	SavedAt   time.Time       `json:"saved_at"`
	Roster    pipeline.Roster `json:"roster"`
	MaxRounds int             `json:"max_rounds"`
	Sessions  []*core.Session `json:"sessions"`
}

// Save writes the snapshot to path atomically: the JSON is written to a
// temp file in the same directory and renamed over the target while the
// file lock is held.
func Save(path string, st *OrchestratorState) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another save or load is in progress")
	}
	defer func() { _ = lock.Unlock() }()

	st.SavedAt = time.Now().UTC()

	doc, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Load reads a snapshot previously written by Save.
func Load(path string) (*OrchestratorState, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring state lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another save is in progress")
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var st OrchestratorState
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &st, nil
}
