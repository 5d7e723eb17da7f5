package campaign

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// State is a portable JSON snapshot of a campaign, written alongside the
// database so a study can be archived or inspected without it.
type State struct {
	Name    string            `json:"name"`
	WorkDir string            `json:"work_dir"`
	App     *App              `json:"app,omitempty"`
	Sampler *SamplerConfig    `json:"sampler,omitempty"`
	Runs    map[string]string `json:"runs"`
	SavedAt time.Time         `json:"saved_at"`
}

// SaveState writes the campaign snapshot to path.
func (c *Campaign) SaveState(path string) error {
	state := State{
		Name:    c.Name,
		WorkDir: c.WorkDir,
		App:     c.app,
		Runs:    c.RunStatuses(),
		SavedAt: time.Now(),
	}

	if c.sampler != nil {
		cfg, err := samplerConfig(c.sampler)
		if err != nil {
			return err
		}
		state.Sampler = &cfg
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode campaign state: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write campaign state %s: %w", path, err)
	}
	return nil
}

// LoadState reads a campaign snapshot from path.
func LoadState(path string) (State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("failed to read campaign state %s: %w", path, err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("failed to parse campaign state %s: %w", path, err)
	}
	return state, nil
}
