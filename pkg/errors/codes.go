package errors

// Error codes used across the API. Handlers pick a constructor in errors.go
// and one of these codes; the middleware serializes them verbatim.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeCharacterMissing = "CHARACTER_NOT_FOUND"
	CodeGalleryMissing   = "GALLERY_ITEM_NOT_FOUND"
	CodeEmptyTranscript  = "EMPTY_TRANSCRIPT"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeSessionBusy      = "SESSION_BUSY"
	CodeStoreFailure     = "STORE_FAILURE"
	CodeUnauthorized     = "UNAUTHORIZED"
)
