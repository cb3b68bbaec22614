package agent

import "strings"

// failureMarker prefixes agent responses that report a failure in-band rather
// than through a transport error.
const failureMarker = "Error:"

// IsFailure reports whether an agent response carries the failure marker.
func IsFailure(result string) bool {
	return strings.HasPrefix(strings.TrimSpace(result), failureMarker)
}

// FailureReason strips the marker and returns the failure text.
func FailureReason(result string) string {
	trimmed := strings.TrimSpace(result)
	if !strings.HasPrefix(trimmed, failureMarker) {
		return trimmed
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, failureMarker))
}

// Failure formats a message with the failure marker.
func Failure(message string) string {
	return failureMarker + " " + message
}
