// Package errors provides structured error handling for semsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where the leading
// digit selects the Kind reported to clients:
//   - 1XX: Configuration errors (reported as InternalError)
//   - 2XX: Corpus or document not found
//   - 3XX: Conflicts with existing state
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Kind is the client-facing error taxonomy. Every failure returned by the
// service carries exactly one Kind.
type Kind string

const (
	// KindValidation indicates a missing or malformed field or an illegal name.
	KindValidation Kind = "ValidationError"
	// KindNotFound indicates the corpus or document is absent.
	KindNotFound Kind = "NotFoundError"
	// KindConflict indicates the corpus already exists.
	KindConflict Kind = "ConflictError"
	// KindInternal indicates embedding failure, I/O failure or a malformed request.
	KindInternal Kind = "InternalError"
)

// Error codes organized by kind.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Not found errors (200-299)
	ErrCodeIndexNotFound    = "ERR_201_INDEX_NOT_FOUND"
	ErrCodeDocumentNotFound = "ERR_202_DOCUMENT_NOT_FOUND"

	// Conflict errors (300-399)
	ErrCodeIndexExists = "ERR_301_INDEX_EXISTS"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeMissingField     = "ERR_402_MISSING_FIELD"
	ErrCodeInvalidName      = "ERR_403_INVALID_NAME"
	ErrCodeQueryEmpty       = "ERR_404_QUERY_EMPTY"
	ErrCodeUnknownOperation = "ERR_405_UNKNOWN_OPERATION"

	// Internal errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed     = "ERR_502_EMBEDDING_FAILED"
	ErrCodeStorageFailed       = "ERR_503_STORAGE_FAILED"
	ErrCodeMalformedRequest    = "ERR_504_MALFORMED_REQUEST"
	ErrCodeDimensionMismatch   = "ERR_505_DIMENSION_MISMATCH"
	ErrCodeCorruptIndex        = "ERR_506_CORRUPT_INDEX"
	ErrCodeProviderUnavailable = "ERR_507_PROVIDER_UNAVAILABLE"
)

// kindFromCode extracts the kind from an error code.
func kindFromCode(code string) Kind {
	// "ERR_" plus three digits
	if len(code) < 7 {
		return KindInternal
	}

	switch code[4] {
	case '2':
		return KindNotFound
	case '3':
		return KindConflict
	case '4':
		return KindValidation
	default:
		return KindInternal
	}
}

// isRetryableCode checks if an error code represents a transient failure.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderUnavailable:
		return true
	default:
		return false
	}
}
