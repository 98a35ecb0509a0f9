package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	wrapped := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestSearchError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "store error",
			code:     ErrCodeFileNotFound,
			message:  "artifact blob not found",
			expected: "[ERR_201_FILE_NOT_FOUND] artifact blob not found",
		},
		{
			name:     "network error",
			code:     ErrCodeNetworkTimeout,
			message:  "request timed out",
			expected: "[ERR_301_NETWORK_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSearchError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "artifact A not found", nil)
	err2 := New(ErrCodeFileNotFound, "artifact B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestSearchError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "artifact not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestSearchError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "artifact not found", nil)

	err = err.WithDetail("artifact_id", "a-123")
	err = err.WithDetail("tenant_id", "tenant-1")

	assert.Equal(t, "a-123", err.Details["artifact_id"])
	assert.Equal(t, "tenant-1", err.Details["tenant_id"])
}

func TestSearchError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeNetworkTimeout, "connection timed out", nil)

	err = err.WithSuggestion("Check the embedding provider endpoint")

	assert.Equal(t, "Check the embedding provider endpoint", err.Suggestion)
}

func TestSearchError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeFilePermission, CategoryIO},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeNetworkUnavailable, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeEmbeddingFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestSearchError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeCorruptIndex, SeverityFatal},
		{ErrCodeStoreFatal, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeNetworkTimeout, SeverityWarning},
		{ErrCodeNetworkUnavailable, SeverityWarning},
		{ErrCodeStoreTransient, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestSearchError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeNetworkTimeout, true},
		{ErrCodeNetworkUnavailable, true},
		{ErrCodeStoreTransient, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeCorruptIndex, false},
		{ErrCodeStoreFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesSearchErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	wrapped := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrCodeInternal, wrapped.Code)
	assert.Equal(t, "something went wrong", wrapped.Message)
	assert.Equal(t, originalErr, wrapped.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestInvalidInput_CreatesValidationCategoryError(t *testing.T) {
	err := InvalidInput("query cannot be empty", nil)

	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, ErrCodeInvalidInput, err.Code)
}

func TestExtractorFailed_CreatesInternalCategoryError(t *testing.T) {
	err := ExtractorFailed("pdf extraction library returned an error", nil)

	assert.Equal(t, CategoryInternal, err.Category)
	assert.Equal(t, ErrCodeExtractorFailed, err.Code)
}

func TestEmbeddingFailed_IsRetryableOnly_WhenCodeSaysSo(t *testing.T) {
	err := EmbeddingFailed("provider returned empty response", nil)

	assert.Equal(t, ErrCodeEmbeddingFailed, err.Code)
	assert.False(t, err.Retryable)
}

func TestVisionUnavailable_CreatesNetworkCategoryError(t *testing.T) {
	err := VisionUnavailable("vision model not installed", nil)

	assert.Equal(t, CategoryNetwork, err.Category)
}

func TestOCRUnavailable_CreatesNetworkCategoryError(t *testing.T) {
	err := OCRUnavailable("ocr engine absent", nil)

	assert.Equal(t, CategoryNetwork, err.Category)
}

func TestStoreTransient_IsRetryable(t *testing.T) {
	err := StoreTransient("sqlite busy", nil)

	assert.True(t, err.Retryable)
}

func TestStoreFatal_IsFatalSeverity(t *testing.T) {
	err := StoreFatal("index corrupt beyond repair", nil)

	assert.Equal(t, SeverityFatal, err.Severity)
}

func TestDeadlineExceeded_CreatesInternalCategoryError(t *testing.T) {
	err := DeadlineExceeded("ingestion deadline expired mid-embedding", nil)

	assert.Equal(t, ErrCodeDeadlineExceeded, err.Code)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable SearchError",
			err:      New(ErrCodeNetworkTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable SearchError",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeNetworkTimeout, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal error",
			err:      New(ErrCodeCorruptIndex, "index corrupt", nil),
			expected: true,
		},
		{
			name:     "store fatal error",
			err:      New(ErrCodeStoreFatal, "no space left", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestGetCode_ExtractsCode(t *testing.T) {
	err := New(ErrCodeFileNotFound, "not found", nil)
	assert.Equal(t, ErrCodeFileNotFound, GetCode(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestGetCategory_ExtractsCategory(t *testing.T) {
	err := New(ErrCodeFileNotFound, "not found", nil)
	assert.Equal(t, CategoryIO, GetCategory(err))
	assert.Equal(t, Category(""), GetCategory(errors.New("plain")))
}
