package domain

import "errors"

// ErrKind tags a domain error with the handling policy the HTTP boundary
// applies. It is not an error type; sentinel errors below are looked up
// through KindOf.
type ErrKind string

const (
	KindValidation    ErrKind = "validation"
	KindNotFound      ErrKind = "not_found"
	KindUnavailable   ErrKind = "external_unavailable"
	KindQuotaRate     ErrKind = "quota_or_rate"
	KindPIILeakage    ErrKind = "pii_leakage"
	KindCheckpoint    ErrKind = "checkpoint_corruption"
	KindPartialIngest ErrKind = "partial_ingestion_failure"
	KindInternal      ErrKind = "internal"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists (duplicate docHash for the user)
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrFileTooLarge indicates an uploaded document exceeds the configured size limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedType indicates an uploaded document's extension or MIME type is disallowed
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrExternalUnavailable indicates a driven port (VectorStore, KVStore,
	// LLMClient, OCRClient) is down or answered with an error; the adapters
	// make a single attempt and do not retry
	ErrExternalUnavailable = errors.New("external service unavailable")

	// ErrQuotaRate indicates the caller exceeded a quota or rate limit
	ErrQuotaRate = errors.New("quota or rate limit exceeded")

	// ErrPIILeakage indicates verifyNoLeakage found residual PII; the
	// analyze pipeline must abort before any LLM call
	ErrPIILeakage = errors.New("pii leakage detected")

	// ErrCheckpointCorruption indicates state.json is unreadable or missing
	// required fields; the run cannot resume
	ErrCheckpointCorruption = errors.New("checkpoint corrupted")

	// ErrPartialIngestion indicates a per-document or per-batch timeout
	// occurred during ingestion; the offending unit is skipped, the pipeline continues
	ErrPartialIngestion = errors.New("partial ingestion failure")
)

// KindOf maps a sentinel domain error to its ErrKind so the HTTP boundary
// can derive a status code without a layer-spanning type switch.
// Unrecognized errors map to KindInternal.
func KindOf(err error) ErrKind {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrFileTooLarge), errors.Is(err, ErrUnsupportedType):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindValidation
	case errors.Is(err, ErrExternalUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrQuotaRate):
		return KindQuotaRate
	case errors.Is(err, ErrPIILeakage):
		return KindPIILeakage
	case errors.Is(err, ErrCheckpointCorruption):
		return KindCheckpoint
	case errors.Is(err, ErrPartialIngestion):
		return KindPartialIngest
	default:
		return KindInternal
	}
}
