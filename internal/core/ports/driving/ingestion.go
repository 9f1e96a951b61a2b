package driving

import "context"

// IngestionRunner drives one bulk-ingestion run, identified by runID, and
// supports resuming a previously interrupted run with the same runID.
type IngestionRunner interface {
	Run(ctx context.Context, runID string, resume bool) error
}
