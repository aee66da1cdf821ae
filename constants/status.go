package constants

// ErrorCategory is the stable failure class surfaced to callers for a generate request.
type ErrorCategory string

// Stable values (shown to the user and used in API responses).
const (
	ErrEmptyResponse     ErrorCategory = "EMPTY_RESPONSE"     // model returned nothing usable
	ErrExtractionFailure ErrorCategory = "EXTRACTION_FAILURE" // no JSON object found in prose
	ErrParseFailure      ErrorCategory = "PARSE_FAILURE"      // malformed JSON
	ErrServiceFailure    ErrorCategory = "SERVICE_FAILURE"    // transport/auth/quota
	ErrTemplateError     ErrorCategory = "TEMPLATE_ERROR"     // renderer-side
)

func (c ErrorCategory) String() string { return string(c) }
