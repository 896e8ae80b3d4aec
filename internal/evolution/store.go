// File: internal/evolution/store.go
package evolution

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
)

// PlaybookStore holds the append-only version history of the playbook and
// persists each version to disk under a deterministic name. Version 0 is the
// caller-supplied initial playbook; every later version comes from exactly one
// update step. Versions are never mutated or deleted once created.
type PlaybookStore struct {
	dir      string
	versions []string
	logger   *zap.Logger
}

// NewPlaybookStore creates the store, persisting the initial playbook as
// version 0.
func NewPlaybookStore(dir, initialPlaybook string, logger *zap.Logger) (*PlaybookStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create playbooks dir %s: %w", dir, err)
	}
	s := &PlaybookStore{
		dir:      dir,
		versions: []string{initialPlaybook},
		logger:   logger.Named("playbook_store"),
	}
	if err := atomicWriteFile(s.playbookPath(0), []byte(initialPlaybook)); err != nil {
		return nil, fmt.Errorf("failed to persist initial playbook: %w", err)
	}
	return s, nil
}

// Latest returns the most recent playbook text.
func (s *PlaybookStore) Latest() string {
	return s.versions[len(s.versions)-1]
}

// LatestVersion returns the index of the most recent playbook.
func (s *PlaybookStore) LatestVersion() int {
	return len(s.versions) - 1
}

// History returns the full version history, oldest first. The returned slice
// is a copy; the store's own history is append-only.
func (s *PlaybookStore) History() []string {
	out := make([]string, len(s.versions))
	copy(out, s.versions)
	return out
}

// Append persists a new playbook version together with the raw model response
// it was extracted from, then appends it to the in-memory history. This is the
// only mutation point of the history. Returns the new version number.
func (s *PlaybookStore) Append(playbook, rawResponse string) (int, error) {
	version := len(s.versions)

	if err := atomicWriteFile(s.playbookPath(version), []byte(playbook)); err != nil {
		return 0, fmt.Errorf("failed to persist playbook v%d: %w", version, err)
	}
	// The raw response is kept alongside the extracted artifact for audit.
	if err := atomicWriteFile(s.responsePath(version), []byte(rawResponse)); err != nil {
		return 0, fmt.Errorf("failed to persist raw response for playbook v%d: %w", version, err)
	}

	s.versions = append(s.versions, playbook)
	s.logger.Info("Playbook version persisted",
		zap.Int("version", version),
		zap.String("path", s.playbookPath(version)),
	)
	return version, nil
}

func (s *PlaybookStore) playbookPath(version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("playbook_v%d.txt", version))
}

func (s *PlaybookStore) responsePath(version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("playbook_v%d.response.txt", version))
}

// GenerationLog accumulates every Generation of the run in step order and
// persists each one verbatim as soon as it is produced. Artifacts are a
// permanent audit trail, written even for attempts later judged wrong.
type GenerationLog struct {
	dir         string
	generations []schemas.Generation
	logger      *zap.Logger
}

// NewGenerationLog creates the log and its output directory.
func NewGenerationLog(dir string, logger *zap.Logger) (*GenerationLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create generations dir %s: %w", dir, err)
	}
	return &GenerationLog{
		dir:    dir,
		logger: logger.Named("generation_log"),
	}, nil
}

// Append persists the generation and records it in insertion order. The
// artifact name is a total, collision-free function of (step, task index,
// playbook version).
func (l *GenerationLog) Append(gen schemas.Generation) error {
	path := filepath.Join(l.dir, ArtifactName(gen.Step, gen.TaskIndex, gen.PlaybookVersion))
	if err := atomicWriteFile(path, []byte(gen.Text)); err != nil {
		return fmt.Errorf("failed to persist generation for step %d: %w", gen.Step, err)
	}
	l.generations = append(l.generations, gen)
	l.logger.Debug("Generation persisted", zap.Int("step", gen.Step), zap.String("path", path))
	return nil
}

// History returns a copy of all generations so far, in step order.
func (l *GenerationLog) History() []schemas.Generation {
	out := make([]schemas.Generation, len(l.generations))
	copy(out, l.generations)
	return out
}

// ArtifactName derives the deterministic generation artifact filename.
func ArtifactName(step, taskIndex, playbookVersion int) string {
	return fmt.Sprintf("%03d_task%03d_v%d.txt", step, taskIndex, playbookVersion)
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place, so a process killed mid-write never leaves a partial
// artifact behind.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
