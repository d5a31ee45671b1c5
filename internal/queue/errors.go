package queue

import "errors"

// ErrorClassifier allows errors to declare their classification so failures
// can be recorded with a machine readable kind.
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	ErrorKind() string
}

// FailureKind returns the classification of err, or "unknown" when it does not
// carry one.
func FailureKind(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := classifier.ErrorKind(); kind != "" {
			return kind
		}
	}
	return "unknown"
}
