// Package ingestion implements the resumable bulk-ingestion pipeline: fetch
// from a Crawler, normalize, chunk, embed, and upsert into a VectorStore,
// checkpointing progress after every stage so a crash or interrupt can
// resume without redoing completed work.
package ingestion

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/core/domain"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
)

var _ driven.CheckpointStore = (*FileCheckpointStore)(nil)

// FileCheckpointStore persists ingestion progress under a root directory,
// one subdirectory per run:
//
//	<dir>/<runID>/state.json
//	<dir>/<runID>/documents.jsonl
//	<dir>/<runID>/normalized.jsonl
//	<dir>/<runID>/chunks.jsonl
//	<dir>/<runID>/skipped_documents.json (optional)
//	<dir>/update_tracker.json
type FileCheckpointStore struct {
	dir string
}

// NewFileCheckpointStore creates a checkpoint store rooted at dir, creating
// it if necessary.
func NewFileCheckpointStore(dir string) (*FileCheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingestion: create checkpoint dir: %w", err)
	}
	return &FileCheckpointStore{dir: dir}, nil
}

func (s *FileCheckpointStore) runDir(runID string) string {
	return filepath.Join(s.dir, runID)
}

func (s *FileCheckpointStore) statePath(runID string) string {
	return filepath.Join(s.runDir(runID), "state.json")
}

func (s *FileCheckpointStore) artifactPath(runID, artifact string) string {
	return filepath.Join(s.runDir(runID), artifact)
}

// writeAtomic writes data to path via a temp file plus rename, so a crash
// mid-write never leaves a corrupted file in path's place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// LoadState reads state.json for a run, or returns ok=false if the run
// directory does not exist yet.
func (s *FileCheckpointStore) LoadState(runID string) (domain.IngestionState, bool, error) {
	data, err := os.ReadFile(s.statePath(runID))
	if os.IsNotExist(err) {
		return domain.IngestionState{}, false, nil
	}
	if err != nil {
		return domain.IngestionState{}, false, fmt.Errorf("ingestion: load state: %w", err)
	}

	var state domain.IngestionState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.IngestionState{}, false, fmt.Errorf("ingestion: corrupted state for run %s: %w", runID, err)
	}
	return state, true, nil
}

// SaveState atomically overwrites state.json, stamping LastUpdated.
func (s *FileCheckpointStore) SaveState(runID string, state domain.IngestionState) error {
	state.LastUpdated = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("ingestion: marshal state: %w", err)
	}
	if err := writeAtomic(s.statePath(runID), data); err != nil {
		return fmt.Errorf("ingestion: save state: %w", err)
	}
	return nil
}

func (s *FileCheckpointStore) appendLines(runID, artifact string, records [][]byte) error {
	path := s.artifactPath(runID, artifact)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ingestion: open %s: %w", artifact, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("ingestion: append %s: %w", artifact, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// AppendDocuments appends raw fetched records to documents.jsonl.
func (s *FileCheckpointStore) AppendDocuments(runID string, records [][]byte) error {
	return s.appendLines(runID, "documents.jsonl", records)
}

// AppendNormalized appends normalized records to normalized.jsonl.
func (s *FileCheckpointStore) AppendNormalized(runID string, records [][]byte) error {
	return s.appendLines(runID, "normalized.jsonl", records)
}

// AppendChunks appends chunk records to chunks.jsonl.
func (s *FileCheckpointStore) AppendChunks(runID string, records [][]byte) error {
	return s.appendLines(runID, "chunks.jsonl", records)
}

// ReadChunks streams chunks.jsonl back, one decoded line at a time,
// tolerating blank lines. Returns nil if the file doesn't exist.
func (s *FileCheckpointStore) ReadChunks(runID string) ([][]byte, error) {
	return s.readLines(s.artifactPath(runID, "chunks.jsonl"))
}

// ReadDocuments streams documents.jsonl back, one decoded line at a time.
func (s *FileCheckpointStore) ReadDocuments(runID string) ([][]byte, error) {
	return s.readLines(s.artifactPath(runID, "documents.jsonl"))
}

// ReadNormalized streams normalized.jsonl back, one decoded line at a time.
func (s *FileCheckpointStore) ReadNormalized(runID string) ([][]byte, error) {
	return s.readLines(s.artifactPath(runID, "normalized.jsonl"))
}

func (s *FileCheckpointStore) readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		out = append(out, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingestion: scan %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// CountLines reports how many non-blank lines an artifact file has.
func (s *FileCheckpointStore) CountLines(runID, artifact string) (int, error) {
	path := s.artifactPath(runID, artifact)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ingestion: count lines: %w", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			count++
		}
	}
	return count, scanner.Err()
}

// AppendSkippedDocument records a per-document timeout or error.
func (s *FileCheckpointStore) AppendSkippedDocument(runID string, doc domain.SkippedDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.appendLines(runID, "skipped_documents.json", [][]byte{data})
}

func (s *FileCheckpointStore) updateTrackerPath() string {
	return filepath.Join(s.dir, "update_tracker.json")
}

// LoadUpdateTracker reads the cross-run update cursor file, or returns a
// zero-value tracker if none exists yet.
func (s *FileCheckpointStore) LoadUpdateTracker() (domain.UpdateTracker, error) {
	data, err := os.ReadFile(s.updateTrackerPath())
	if os.IsNotExist(err) {
		return domain.UpdateTracker{LastUpdate: map[string]time.Time{}}, nil
	}
	if err != nil {
		return domain.UpdateTracker{}, fmt.Errorf("ingestion: load update tracker: %w", err)
	}

	var tracker domain.UpdateTracker
	if err := json.Unmarshal(data, &tracker); err != nil {
		return domain.UpdateTracker{}, fmt.Errorf("ingestion: corrupted update tracker: %w", err)
	}
	if tracker.LastUpdate == nil {
		tracker.LastUpdate = map[string]time.Time{}
	}
	return tracker, nil
}

// SaveUpdateTracker atomically overwrites the update cursor file.
func (s *FileCheckpointStore) SaveUpdateTracker(tracker domain.UpdateTracker) error {
	data, err := json.MarshalIndent(tracker, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.updateTrackerPath(), data)
}

// CanResume reports whether a run's persisted state allows resuming it.
func (s *FileCheckpointStore) CanResume(runID string) bool {
	state, ok, err := s.LoadState(runID)
	if err != nil || !ok {
		return false
	}
	return state.CanResume()
}
