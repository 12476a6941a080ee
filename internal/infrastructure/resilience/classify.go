package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

// StatusError is a non-2xx answer from an HTTP dependency, with the body kept for diagnostics.
type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "http status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// ClassifyHTTP is the classifier for configured dependencies (the model API, YouTube).
// Transport failures and 408/429/5xx answers are transient, other statuses are rejected and
// an unknown host is rejected too. Cancellation is never retried nor counted.
func ClassifyHTTP(err error) ErrorClassification {
	if err == nil {
		return Rejected
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Rejected
	}
	if IsCircuitOpen(err) {
		return Transient
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.StatusCode)
	}
	if IsUnknownHost(err) {
		return Rejected
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	return Broken
}

// ClassifyTarget is for requests whose host the user picked, such as an arbitrary web page.
// One attempt only, and nothing counts against the breaker: a dead site says nothing about
// the next user's site.
func ClassifyTarget(err error) ErrorClassification {
	if IsCircuitOpen(err) {
		return Transient
	}
	return Rejected
}

// IsUnknownHost reports a DNS answer that the name does not exist.
func IsUnknownHost(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func ClassifyStatus(statusCode int) ErrorClassification {
	if RetryableStatus(statusCode) {
		return Transient
	}
	return Rejected
}

func RetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// WrapTemporary tags err as domain.ErrTemporary when the classifier would have retried it
// or the breaker is open; anything else is returned untouched.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = ClassifyHTTP
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
