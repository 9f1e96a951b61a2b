package driven

import "github.com/custodia-labs/legalrag-core/internal/core/domain"

// CheckpointStore persists ingestion progress to disk so a run can resume
// after a crash. Every write uses the temp-file-plus-rename pattern so an
// aborted write never leaves a partial artifact in place of the last valid
// one (testable property 9).
type CheckpointStore interface {
	// LoadState reads state.json for a run, or returns ok=false if the run
	// directory does not exist yet.
	LoadState(runID string) (state domain.IngestionState, ok bool, err error)

	// SaveState atomically overwrites state.json.
	SaveState(runID string, state domain.IngestionState) error

	// AppendDocuments appends raw fetched records to documents.jsonl.
	AppendDocuments(runID string, records [][]byte) error

	// ReadDocuments streams documents.jsonl back, one decoded line at a
	// time, tolerating blank lines.
	ReadDocuments(runID string) ([][]byte, error)

	// AppendNormalized appends normalized records to normalized.jsonl.
	AppendNormalized(runID string, records [][]byte) error

	// ReadNormalized streams normalized.jsonl back, one decoded line at a
	// time, tolerating blank lines.
	ReadNormalized(runID string) ([][]byte, error)

	// AppendChunks appends chunk records to chunks.jsonl, supporting
	// incremental batch-level checkpointing within the chunk stage.
	AppendChunks(runID string, records [][]byte) error

	// ReadChunks streams chunks.jsonl back, one decoded line at a time,
	// tolerating blank lines.
	ReadChunks(runID string) ([][]byte, error)

	// CountLines reports how many non-blank lines an artifact file has,
	// used to decide whether a stage's output is already non-empty.
	CountLines(runID, artifact string) (int, error)

	// AppendSkippedDocument records a per-document timeout or error.
	AppendSkippedDocument(runID string, doc domain.SkippedDocument) error

	// LoadUpdateTracker reads the cross-run update cursor file, or returns
	// a zero-value tracker if none exists yet.
	LoadUpdateTracker() (domain.UpdateTracker, error)

	// SaveUpdateTracker atomically overwrites the update cursor file.
	SaveUpdateTracker(domain.UpdateTracker) error
}
