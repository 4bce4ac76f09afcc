package navgate

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeTokenExpired       = "nav_token_expired"
	TextCodeTokenMalformed     = "nav_token_malformed"
	TextCodeSessionNotFound    = "nav_session_not_found"
	TextCodeSessionDecodeError = "nav_session_decode_error"
	TextCodeClaimsMappingError = "nav_claims_mapping_error"
	TextCodeHydrationFailed    = "nav_hydration_failed"
	TextCodeUpstreamFailure    = "nav_upstream_failed"
	TextCodeUpstreamNotAllowed = "nav_upstream_not_allowed"
	TextCodeMissingTarget      = "nav_upstream_missing_target"
	TextCodeProfileDisabled    = "nav_profile_completion_disabled"
	TextCodeDebugDisabled      = "nav_debug_endpoints_disabled"
)

// ErrTokenExpired is returned when a session token is past its expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a session token cannot be parsed.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is returned when a request carries no session.
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when stored session state cannot be decoded.
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims is returned when token claims cannot be mapped to a session.
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrHydrationFailed is returned when the session loader fails; the store still
// hydrates to an anonymous session so routing can proceed.
var ErrHydrationFailed = errors.New("session hydration failed", errors.CategoryExternal).
	WithTextCode(TextCodeHydrationFailed).
	WithCode(errors.CodeInternal)

// ErrUpstreamNotAllowed is returned when a passthrough path is outside the allowlist.
var ErrUpstreamNotAllowed = errors.New("upstream path not allowed", errors.CategoryAuthz).
	WithTextCode(TextCodeUpstreamNotAllowed).
	WithCode(errors.CodeForbidden)

// ErrUpstreamMissingTarget is returned when a passthrough request names no upstream path.
var ErrUpstreamMissingTarget = errors.New("missing upstream path", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingTarget).
	WithCode(errors.CodeBadRequest)

// ErrProfileCompletionDisabled is returned when the profile completion feature gate is off.
var ErrProfileCompletionDisabled = errors.New("profile completion is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeProfileDisabled).
	WithCode(errors.CodeForbidden)

// ErrDebugDisabled is returned when debug endpoints are gated off.
var ErrDebugDisabled = errors.New("debug endpoints are disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeDebugDisabled).
	WithCode(errors.CodeForbidden)

// IsTokenExpiredError will check for expired tokens, including errors coming
// from the jwt library that only expose their message.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed token errors by message.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed session token")
}
