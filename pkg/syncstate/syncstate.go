// Package syncstate persists the sync checkpoint (§6 "A sync-state
// blob") as YAML, in the same style the teacher's pkg/frontmatter uses
// gopkg.in/yaml.v3 for structured on-disk documents.
package syncstate

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mattsolo1/notewire/pkg/model"
)

const fileName = "sync_state.yaml"

// Load reads the sync state from root, returning a fresh zero state if
// no file exists yet.
func Load(root string) (*model.SyncState, error) {
	path := filepath.Join(root, fileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.NewSyncState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	state := model.NewSyncState()
	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	if state.LinkedNotebookUpdateCount == nil {
		state.LinkedNotebookUpdateCount = make(map[string]model.USN)
	}
	if state.LinkedNotebookLastSyncTime == nil {
		state.LinkedNotebookLastSyncTime = make(map[string]int64)
	}
	return state, nil
}

// Save writes the sync state to root, creating the directory if
// needed.
func Save(root string, state *model.SyncState) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create sync state dir: %w", err)
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	path := filepath.Join(root, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return nil
}
