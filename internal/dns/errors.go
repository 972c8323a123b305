package dns

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned by adapter constructors for unusable settings.
	ErrConfig = errors.New("invalid provider configuration")
	// ErrDomainParse marks a root domain that is not a well-formed domain name.
	// It always travels together with ErrConfig.
	ErrDomainParse = errors.New("domain parse error")
	// ErrMissingIdentifier is returned when an operation needs a
	// provider-native id and the record has none.
	ErrMissingIdentifier = errors.New("missing record identifier")
	// ErrRecordNotFound is returned when no listed record matches an id or domain.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnsupportedAction is returned for actions an adapter does not implement.
	ErrUnsupportedAction = errors.New("unsupported DNS action")
	// ErrUnsupportedRecordType is returned for record types outside the managed set.
	ErrUnsupportedRecordType = errors.New("unsupported record type")
	// ErrBuild is returned when a provider request cannot be constructed
	// from the given record.
	ErrBuild = errors.New("cannot build provider request")

	// ErrProviderTransport matches a *ProviderError of KindTransport.
	ErrProviderTransport = errors.New("provider transport error")
	// ErrProviderAPI matches a *ProviderError of KindAPI.
	ErrProviderAPI = errors.New("provider API error")
)

// ErrorKind classifies a ProviderError.
type ErrorKind int

const (
	// KindTransport covers network, TLS and timeout failures.
	KindTransport ErrorKind = iota
	// KindAPI covers non-success responses and API-level error payloads.
	KindAPI
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ProviderError is a failure talking to a DNS backend.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int    // HTTP status, 0 if unknown
	Code       string // backend error code, if any
	Body       string // raw response body or backend message
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Kind == KindAPI && e.StatusCode != 0:
		return fmt.Sprintf("%s: API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Kind == KindAPI && e.Code != "":
		return fmt.Sprintf("%s: API error %s: %s", e.Provider, e.Code, e.Body)
	case e.Kind == KindAPI:
		return fmt.Sprintf("%s: API error: %s", e.Provider, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a ProviderError against ErrProviderTransport or
// ErrProviderAPI.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProviderTransport:
		return e.Kind == KindTransport
	case ErrProviderAPI:
		return e.Kind == KindAPI
	}
	return false
}

// TransportError wraps err as a KindTransport ProviderError.
func TransportError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransport, Err: err}
}

// APIError builds a KindAPI ProviderError from a status code and body.
func APIError(provider string, status int, body string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindAPI, StatusCode: status, Body: body}
}
