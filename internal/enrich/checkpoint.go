package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint is the durable progress record of a backfill run. Succeeded and
// skipped ids enter the processed set; failed ids deliberately do not, so a
// resumed run retries them.
type Checkpoint struct {
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Processed map[string]bool `json:"processed"`
	FailedIDs []string        `json:"failed_ids"`
	Succeeded int             `json:"succeeded"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
}

func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		StartedAt: time.Now(),
		Processed: map[string]bool{},
	}
}

// LoadCheckpoint reads a checkpoint file, initializing a fresh one if none
// exists. A corrupt file is an error, not a silent restart; losing the
// processed set would re-enrich everything.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if cp.Processed == nil {
		cp.Processed = map[string]bool{}
	}
	return &cp, nil
}

func (c *Checkpoint) IsProcessed(id string) bool {
	return c.Processed[id]
}

func (c *Checkpoint) MarkSucceeded(id string) {
	c.Processed[id] = true
	c.Succeeded++
}

// MarkSkipped records a low-confidence skip. Skips are final for the run:
// the id joins the processed set and is not retried on resume.
func (c *Checkpoint) MarkSkipped(id string) {
	c.Processed[id] = true
	c.Skipped++
}

// MarkFailed records a failure without adding the id to the processed set.
func (c *Checkpoint) MarkFailed(id string) {
	c.FailedIDs = append(c.FailedIDs, id)
	c.Failed++
}

// Save writes the checkpoint atomically: temp file then rename, so a crash
// mid-write leaves the previous checkpoint intact.
func (c *Checkpoint) Save(path string) error {
	c.UpdatedAt = time.Now()

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file after a run with zero failures.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint %s: %w", path, err)
	}
	return nil
}
