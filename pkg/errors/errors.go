package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeHardBlocked represents an authoritative rejection (401/403/429)
	ErrorTypeHardBlocked ErrorType = "hard_blocked"
	// ErrorTypeTransient represents a recoverable failure (5xx or an empty result page)
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeNetwork represents a request that never produced an HTTP response
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeStorage represents seen store persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// WatchError represents a listing watcher error scoped to one URL
type WatchError struct {
	Type    ErrorType
	URL     string
	Status  int
	Message string
	Snippet string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *WatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e *WatchError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *WatchError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTransient, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// New creates a new WatchError
func New(errType ErrorType, url, message string, err error) *WatchError {
	return &WatchError{
		Type:    errType,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewHardBlocked creates a hard block error carrying the body excerpt
func NewHardBlocked(url string, status int, snippet string) *WatchError {
	e := New(ErrorTypeHardBlocked, url, fmt.Sprintf("hard blocked with status %d", status), nil)
	e.Status = status
	e.Snippet = snippet
	return e
}

// NewTransient creates a transient failure error
func NewTransient(url string, status int, message, snippet string) *WatchError {
	e := New(ErrorTypeTransient, url, message, nil)
	e.Status = status
	e.Snippet = snippet
	return e
}

// NewNetwork creates a new network error
func NewNetwork(url, message string, err error) *WatchError {
	return New(ErrorTypeNetwork, url, message, err)
}

// NewStorage creates a new storage error
func NewStorage(path, message string, err error) *WatchError {
	return New(ErrorTypeStorage, path, message, err)
}

// NewCache creates a new cache error
func NewCache(key, message string, err error) *WatchError {
	return New(ErrorTypeCache, key, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(target, message string, err error) *WatchError {
	return New(ErrorTypePublisher, target, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *WatchError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsHardBlocked reports whether err carries a hard block
func IsHardBlocked(err error) bool {
	return hasType(err, ErrorTypeHardBlocked)
}

// IsTransient reports whether err is a transient or network failure
func IsTransient(err error) bool {
	var we *WatchError
	return stderrors.As(err, &we) && we.IsRetryable()
}

func hasType(err error, t ErrorType) bool {
	var we *WatchError
	if stderrors.As(err, &we) {
		return we.Type == t
	}
	return false
}
