package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers branch with errors.Is; the typed carriers below
// match their kind through Is.
var (
	ErrNotEnabled         = errors.New("classification not enabled")
	ErrCredentialsMissing = errors.New("analysis credentials missing")
	ErrTransport          = errors.New("analysis transport failure")
	ErrProvider           = errors.New("analysis provider error")
	ErrInvalidResponse    = errors.New("invalid analysis response")
	ErrLinking            = errors.New("term linking failed")
	ErrContentNotFound    = errors.New("content not found")
	ErrInvalidSettings    = errors.New("invalid settings")
)

// TransportError wraps a network or timeout failure. Safe to retry.
type TransportError struct {
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s (timeout): %v", ErrTransport, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProviderError is a well-formed error payload returned by the provider.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status=%d code=%s: %s", ErrProvider, e.StatusCode, e.Code, e.Message)
}

// Is matches ErrProvider.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// InvalidResponseError carries a body that could not be parsed.
type InvalidResponseError struct {
	StatusCode int
	Raw        []byte
	Err        error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s: status=%d: %v", ErrInvalidResponse, e.StatusCode, e.Err)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// Is matches ErrInvalidResponse.
func (e *InvalidResponseError) Is(target error) bool { return target == ErrInvalidResponse }

// LinkingError is a term-store failure scoped to one feature.
type LinkingError struct {
	Feature  FeatureName
	Taxonomy string
	Err      error
}

func (e *LinkingError) Error() string {
	return fmt.Sprintf("%s: feature=%s taxonomy=%s: %v", ErrLinking, e.Feature, e.Taxonomy, e.Err)
}

func (e *LinkingError) Unwrap() error { return e.Err }

// Is matches ErrLinking.
func (e *LinkingError) Is(target error) bool { return target == ErrLinking }

// Error kind labels used in logs, metrics and API payloads.
const (
	KindNone               = "none"
	KindNotEnabled         = "not_enabled"
	KindCredentialsMissing = "credentials_missing"
	KindTransport          = "transport"
	KindProvider           = "provider"
	KindInvalidResponse    = "invalid_response"
	KindLinking            = "linking"
	KindContentNotFound    = "content_not_found"
	KindInvalidSettings    = "invalid_settings"
	KindInternal           = "internal"
)

var kindOrder = []struct {
	err  error
	kind string
}{
	{ErrNotEnabled, KindNotEnabled},
	{ErrCredentialsMissing, KindCredentialsMissing},
	{ErrTransport, KindTransport},
	{ErrProvider, KindProvider},
	{ErrInvalidResponse, KindInvalidResponse},
	{ErrLinking, KindLinking},
	{ErrContentNotFound, KindContentNotFound},
	{ErrInvalidSettings, KindInvalidSettings},
}

// Kind returns the stable label for err's kind.
func Kind(err error) string {
	if err == nil {
		return KindNone
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
