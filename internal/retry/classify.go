package retry

import (
	"errors"
	"net/http"
)

// FailureClass decides whether a failed attempt is worth repeating.
type FailureClass int

const (
	// Transient failures are retried under the backoff policy.
	Transient FailureClass = iota
	// Permanent failures propagate on the first occurrence.
	Permanent
)

func (f FailureClass) String() string {
	if f == Permanent {
		return "permanent"
	}
	return "transient"
}

// statusCoder is implemented by errors that carry an HTTP-like status.
type statusCoder interface {
	StatusCode() int
}

// Classify maps an error to its failure class. Only a not-found status is
// permanent; everything else, including timeouts and 5xx, is transient.
func Classify(err error) FailureClass {
	if err == nil {
		return Transient
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusNotFound {
		return Permanent
	}
	return Transient
}

// StatusCode extracts the HTTP-like status carried by err, or 0.
func StatusCode(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
