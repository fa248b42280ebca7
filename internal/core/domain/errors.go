// Package domain defines the core domain models for TLSMesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
//
// Codes follow the TM-<AREA>-<NNNN> layout; the trailing number mirrors the
// HTTP status family the error maps to at the REST boundary.
type DomainError struct {
	Code    string // Error code (e.g., "TM-ADMIN-4030")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
// The cause text becomes the details when none were set.
func (e *DomainError) WithCause(cause error) *DomainError {
	details := e.Details
	if details == "" && cause != nil {
		details = cause.Error()
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Reload errors.
var (
	// ErrUnauthorized indicates the caller is not an administrator.
	// Fatal to the whole operation; nothing has been changed.
	ErrUnauthorized = NewDomainError("TM-ADMIN-4030", "admin role required")

	// ErrInvalidChannelType indicates an unrecognized certificate channel selector.
	ErrInvalidChannelType = NewDomainError("TM-ARG-4001", "invalid certificate type, use http or transport")

	// ErrInvalidTrigger indicates a reload trigger without an initiating node.
	ErrInvalidTrigger = NewDomainError("TM-ARG-4002", "invalid reload trigger")

	// ErrCertificateLoad indicates the certificate store rejected new material.
	ErrCertificateLoad = NewDomainError("TM-CERT-5001", "certificate material could not be loaded")

	// ErrStoreUnavailable indicates no certificate store is wired.
	ErrStoreUnavailable = NewDomainError("TM-SYS-5000", "keystore is not initialized")
)

// Cluster errors. These never fail a reload round; they are recorded per node.
var (
	// ErrPeerUnreachable indicates a node could not be reached during fan-out.
	ErrPeerUnreachable = NewDomainError("TM-CLUSTER-5031", "peer unreachable")

	// ErrDisconnect indicates a disconnect from a peer failed.
	ErrDisconnect = NewDomainError("TM-CLUSTER-5032", "disconnect from peer failed")

	// ErrNodeNotFound indicates a node is not part of the membership snapshot.
	ErrNodeNotFound = NewDomainError("TM-CLUSTER-4040", "node not found")
)

// System errors.
var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("TM-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("TM-SYS-4290", "too many requests")

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError("TM-SYS-5002", "internal server error")
)
