package metrics

import "strings"

// ErrorCategory buckets a record's error for local, label-free tallying.
// This is supplemental: the wire format and the four core Prometheus
// families never key on it, avoiding label cardinality growth; only the
// supplemental operation_errors_total counter uses it as its one label.
// See the original
// implementation's ErrorCategory enum.
type ErrorCategory string

const (
	ErrorRateLimiting   ErrorCategory = "rate_limiting"
	ErrorNetwork        ErrorCategory = "network"
	ErrorStorage        ErrorCategory = "storage"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorUnknown        ErrorCategory = "unknown"
)

// ClassifyError maps an error code/message pair to a coarse category.
// It is best-effort string matching, not a wire contract — the input
// vocabulary comes from whatever the driver reports.
func ClassifyError(code, message string) ErrorCategory {
	haystack := strings.ToLower(code + " " + message)

	switch {
	case containsAny(haystack, "429", "rate limit", "throttl", "slowdown"):
		return ErrorRateLimiting
	case containsAny(haystack, "timeout", "timed out", "deadline exceeded"):
		return ErrorTimeout
	case containsAny(haystack, "403", "401", "accessdenied", "signaturedoesnotmatch", "invalidaccesskey"):
		return ErrorAuthentication
	case containsAny(haystack, "connection refused", "connection reset", "dns", "no route to host", "eof", "broken pipe"):
		return ErrorNetwork
	case containsAny(haystack, "nosuchbucket", "nosuchkey", "internalerror", "503", "500"):
		return ErrorStorage
	default:
		return ErrorUnknown
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
