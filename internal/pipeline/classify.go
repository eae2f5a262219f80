package pipeline

import "strings"

// Error codes stored on failed jobs. Clients key their UI on these, so
// the set is closed: every failure maps to exactly one code.
const (
	CodeAPIKeyMissing       = "OPENAI_API_KEY_MISSING"
	CodeInputNotFound       = "INPUT_NOT_FOUND"
	CodeBucketNotConfigured = "BUCKET_NOT_CONFIGURED"
	CodeLimitReached        = "LIMIT_REACHED"
	CodeLimitCheckFailed    = "LIMIT_CHECK_FAILED"
	CodeProcessingError     = "JOB_PROCESSING_ERROR"
)

// ClassifyError maps a pipeline failure to an error code by inspecting
// the error text. Matching is ordered: the first marker wins. Anything
// unrecognized falls through to the generic processing error, so the
// classifier can never leave a failed job without a code.
func ClassifyError(err error) string {
	if err == nil {
		return CodeProcessingError
	}

	msg := err.Error()

	switch {
	case strings.Contains(msg, "OPENAI_API_KEY"):
		return CodeAPIKeyMissing
	case strings.Contains(msg, "No such object"), strings.Contains(msg, "not found"):
		return CodeInputNotFound
	case strings.Contains(strings.ToLower(msg), "storage bucket name not configured"):
		return CodeBucketNotConfigured
	default:
		return CodeProcessingError
	}
}
