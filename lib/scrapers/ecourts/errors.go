package ecourts

import (
	"errors"
	"fmt"
)

// ErrSessionExpired means the portal no longer recognises the session's
// cookies or app_token. The whole operation must restart on a fresh
// session; any captcha bound to the old one is gone with it.
var ErrSessionExpired = errors.New("portal session expired")

// PortalUnavailableError covers network failures, timeouts and 5xx
// responses. It is the only failure class the hierarchy calls retry.
type PortalUnavailableError struct {
	Op  string
	Err error
}

func (e *PortalUnavailableError) Error() string {
	return fmt.Sprintf("portal unavailable during %s: %v", e.Op, e.Err)
}

func (e *PortalUnavailableError) Unwrap() error {
	return e.Err
}

func IsPortalUnavailable(err error) bool {
	var target *PortalUnavailableError
	return errors.As(err, &target)
}

// CaptchaRejectedError reports a wrong captcha solution. NextChallenge,
// when present, is a freshly issued challenge the caller can solve
// without another issue round trip.
type CaptchaRejectedError struct {
	Reason        string
	NextChallenge *CaptchaChallenge
}

func (e *CaptchaRejectedError) Error() string {
	return fmt.Sprintf("captcha rejected: %s", e.Reason)
}

// ParseError means the portal responded with markup the scraper does
// not recognise. It is never retried: it signals site-structure drift
// that needs a code change, and the offending fragment is kept for
// diagnosis.
type ParseError struct {
	Reason   string
	Fragment string
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("unexpected portal markup: %s", e.Reason)
	}
	return fmt.Sprintf("unexpected portal markup: %s: %q", e.Reason, e.Fragment)
}

// ValidationError rejects malformed caller input before any network
// call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
