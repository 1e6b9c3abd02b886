package solver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const checkpointFileVersion = 1

// checkpointSnapshot is the on-disk trainer state. Deal and traversal RNG
// streams are re-derived from (seed, iteration), so the snapshot only needs
// the counters and the store contents to resume bit-identically.
type checkpointSnapshot struct {
	Version   int                       `json:"version"`
	SavedAt   time.Time                 `json:"saved_at"`
	Iteration int64                     `json:"iteration"`
	Elapsed   time.Duration             `json:"elapsed_ns"`
	Config    CFRConfig                 `json:"config"`
	Params    GameParams                `json:"params"`
	InfoSets  map[string]*InfoSet       `json:"infosets"`
}

// SaveCheckpoint writes the trainer state atomically: encode to a temp file
// in the destination directory, then rename over the target.
func (t *Trainer) SaveCheckpoint(path string) error {
	snap := &checkpointSnapshot{
		Version:   checkpointFileVersion,
		SavedAt:   time.Now().UTC(),
		Iteration: t.iteration,
		Elapsed:   t.elapsed,
		Config:    t.cfg,
		Params:    t.params,
		InfoSets:  t.store.Snapshot(),
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	enc := json.NewEncoder(tmp)
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

// ResumeTrainer restores a trainer from a checkpoint, rebuilding the tree
// from the stored parameters and the store from the snapshot.
func ResumeTrainer(path string, rebuild func(GameParams) (*Trainer, error)) (*Trainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := decodeCheckpoint(f)
	if err != nil {
		return nil, err
	}
	trainer, err := rebuild(snap.Params)
	if err != nil {
		return nil, err
	}
	trainer.iteration = snap.Iteration
	trainer.elapsed = snap.Elapsed
	trainer.store.Restore(snap.InfoSets)
	return trainer, nil
}

func decodeCheckpoint(r io.Reader) (*checkpointSnapshot, error) {
	var snap checkpointSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Version != checkpointFileVersion {
		return nil, errors.New("unsupported checkpoint version")
	}
	if err := snap.Config.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint config invalid: %w", err)
	}
	if err := snap.Params.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint params invalid: %w", err)
	}
	return &snap, nil
}
