// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrNilParameter           = errors.New("nil parameter")
	ErrInvalidCACert          = errors.New("invalid CA certificate")
	ErrAlreadyStarted         = errors.New("provider already started")
	ErrNotStarted             = errors.New("provider not started")
	ErrListenerRegistered     = errors.New("listener already registered")
	ErrUnsupportedDisplayType = errors.New("unsupported display type")
	ErrNoConfigMatch          = errors.New("no config matches location")
	ErrFramesUnsupported      = errors.New("document cannot host frames")

	ErrNoOAuthState            = errors.New(string(ErrorTypeNoOAuthState))
	ErrOAuthStateMismatch      = errors.New(string(ErrorTypeOAuthStateMismatch))
	ErrOAuthStateExpired       = errors.New(string(ErrorTypeOAuthStateExpired))
	ErrUnableToExchangeCode    = errors.New(string(ErrorTypeUnableToExchangeCode))
	ErrNotSubscribedToUserInfo = errors.New(string(ErrorTypeNotSubscribedToUserInfo))
	ErrInvalidOAuthToken       = errors.New(string(ErrorTypeInvalidOAuthToken))
	ErrUnableToGetUserInfo     = errors.New(string(ErrorTypeUnableToGetUserInfo))
)

// ErrorType classifies an OAuthError.
type ErrorType string

const (
	ErrorTypeNoOAuthState            ErrorType = "no-oauth-state"
	ErrorTypeOAuthStateMismatch      ErrorType = "oauth-state-mismatch"
	ErrorTypeOAuthStateExpired       ErrorType = "oauth-state-expired"
	ErrorTypeUnableToExchangeCode    ErrorType = "unable-to-exchange-code-for-token"
	ErrorTypeNotSubscribedToUserInfo ErrorType = "not-subscribed-to-user-info"
	ErrorTypeInvalidOAuthToken       ErrorType = "invalid-oauth-token"
	ErrorTypeUnableToGetUserInfo     ErrorType = "unable-to-get-user-info"
)

var errorTypeSentinels = map[ErrorType]error{
	ErrorTypeNoOAuthState:            ErrNoOAuthState,
	ErrorTypeOAuthStateMismatch:      ErrOAuthStateMismatch,
	ErrorTypeOAuthStateExpired:       ErrOAuthStateExpired,
	ErrorTypeUnableToExchangeCode:    ErrUnableToExchangeCode,
	ErrorTypeNotSubscribedToUserInfo: ErrNotSubscribedToUserInfo,
	ErrorTypeInvalidOAuthToken:       ErrInvalidOAuthToken,
	ErrorTypeUnableToGetUserInfo:     ErrUnableToGetUserInfo,
}

// OAuthError is a failed login attempt. It is what a Store in StateError
// carries, and the description is suitable for showing to an end user.
type OAuthError struct {
	Type        ErrorType
	Description string
	URI         string

	// Wrapped is the underlying cause, if any (a transport error, a token
	// endpoint error response, ...).
	Wrapped error
}

// NewOAuthError creates an OAuthError wrapping the optional cause.
func NewOAuthError(typ ErrorType, description string, cause error) *OAuthError {
	return &OAuthError{
		Type:        typ,
		Description: description,
		Wrapped:     cause,
	}
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("oauth error: %s: %s: %s", e.Type, e.Description, e.Wrapped)
	}
	return fmt.Sprintf("oauth error: %s: %s", e.Type, e.Description)
}

// Unwrap supports errors.Is and errors.As for both the sentinel matching the
// error's Type (ErrOAuthStateMismatch, ...) and the wrapped cause.
func (e *OAuthError) Unwrap() []error {
	var errs []error
	if s, ok := errorTypeSentinels[e.Type]; ok {
		errs = append(errs, s)
	}
	if e.Wrapped != nil {
		errs = append(errs, e.Wrapped)
	}
	return errs
}
