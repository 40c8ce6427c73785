package kafka

import (
	"context"
	stderrors "errors"
	"strings"
)

var (
	connectionPatterns = []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection closed",
		"dial tcp",
		"network exception",
	}
	transientPatterns = []string{
		"temporary",
		"request timed out",
		"not enough replicas",
	}
	permanentPatterns = []string{
		"message too large",
		"invalid topic",
		"unknown topic",
		"authorization failed",
		"sasl authentication failed",
	}
)

func matchAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConnectionError reports whether err looks like a broker connection
// failure.
func IsConnectionError(err error) bool {
	return err != nil && matchAny(err, connectionPatterns)
}

// IsRetryableError decides whether a failed write is worth another attempt.
// Errors carrying a Temporary method (kafka-go protocol errors) are trusted;
// otherwise the message is matched against known transient and permanent
// failures. Context errors are never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var temp interface{ Temporary() bool }
	if stderrors.As(err, &temp) {
		return temp.Temporary()
	}
	if matchAny(err, permanentPatterns) {
		return false
	}
	return IsConnectionError(err) || matchAny(err, transientPatterns)
}
