package domain

import (
	"errors"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrAlreadyExists", ErrAlreadyExists, "already exists"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrFileTooLarge", ErrFileTooLarge, "file too large"},
		{"ErrUnsupportedType", ErrUnsupportedType, "unsupported file type"},
		{"ErrExternalUnavailable", ErrExternalUnavailable, "external service unavailable"},
		{"ErrQuotaRate", ErrQuotaRate, "quota or rate limit exceeded"},
		{"ErrPIILeakage", ErrPIILeakage, "pii leakage detected"},
		{"ErrCheckpointCorruption", ErrCheckpointCorruption, "checkpoint corrupted"},
		{"ErrPartialIngestion", ErrPartialIngestion, "partial ingestion failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrFileTooLarge,
		ErrUnsupportedType,
		ErrExternalUnavailable,
		ErrQuotaRate,
		ErrPIILeakage,
		ErrCheckpointCorruption,
		ErrPartialIngestion,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrKind
	}{
		{ErrInvalidInput, KindValidation},
		{ErrFileTooLarge, KindValidation},
		{ErrUnsupportedType, KindValidation},
		{ErrAlreadyExists, KindValidation},
		{ErrNotFound, KindNotFound},
		{ErrExternalUnavailable, KindUnavailable},
		{ErrQuotaRate, KindQuotaRate},
		{ErrPIILeakage, KindPIILeakage},
		{ErrCheckpointCorruption, KindCheckpoint},
		{ErrPartialIngestion, KindPartialIngest},
		{errors.New("unmapped"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.kind)
			}
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrNotFound)
	if KindOf(wrapped) != KindNotFound {
		t.Error("KindOf should see through errors.Join via errors.Is")
	}
}
