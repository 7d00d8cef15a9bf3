package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bentham/bentham/internal/bentherr"
)

// Store is crash-safe persistence of a study's checkpoint keyed by studyId
// (spec §4.B). Writes use write-temp-then-rename discipline with a
// directory fsync so readers never observe a torn write.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. dir is created if missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, bentherr.Wrap(bentherr.InternalError, "checkpoint: create directory", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(studyID string) string {
	return filepath.Join(s.dir, studyID+".json")
}

// Save atomically writes ckpt's full snapshot. Existing readers see either
// the pre-image or the post-image, never a torn write.
func (s *Store) Save(ckpt *Checkpoint) error {
	data, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "checkpoint: marshal", err)
	}

	finalPath := s.path(ckpt.StudyID)
	tmpFile, err := os.CreateTemp(s.dir, ckpt.StudyID+".tmp.*")
	if err != nil {
		return bentherr.Wrap(bentherr.InternalError, "checkpoint: create temp file", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return bentherr.Wrap(bentherr.InternalError, "checkpoint: write temp file", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return bentherr.Wrap(bentherr.InternalError, "checkpoint: fsync temp file", err)
	}
	if err := tmpFile.Close(); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "checkpoint: close temp file", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return bentherr.Wrap(bentherr.InternalError, "checkpoint: atomic rename", err)
	}

	if dirFile, err := os.Open(s.dir); err == nil {
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}

	return nil
}

// Load reads the checkpoint for studyID, or (nil, nil) if it does not
// exist. A version mismatch or corrupt file is a fatal load error — the
// operator must intervene (spec §4.B failure model).
func (s *Store) Load(studyID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(studyID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, bentherr.Wrap(bentherr.InternalError, "checkpoint: read file", err)
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, bentherr.Wrap(bentherr.InternalError, fmt.Sprintf("checkpoint: corrupt file for study %s", studyID), err)
	}
	if ckpt.Version != FormatVersion {
		return nil, bentherr.New(bentherr.InternalError,
			fmt.Sprintf("checkpoint: cannot load study %s, version %d does not match supported %d", studyID, ckpt.Version, FormatVersion))
	}
	return &ckpt, nil
}

// Exists reports whether a checkpoint file is present for studyID.
func (s *Store) Exists(studyID string) bool {
	_, err := os.Stat(s.path(studyID))
	return err == nil
}

// Delete removes the checkpoint file for studyID. Idempotent.
func (s *Store) Delete(studyID string) error {
	err := os.Remove(s.path(studyID))
	if err != nil && !os.IsNotExist(err) {
		return bentherr.Wrap(bentherr.InternalError, "checkpoint: delete file", err)
	}
	return nil
}
