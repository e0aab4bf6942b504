// Package fetch defines the error taxonomy shared by all providers and runs
// the concurrent per-provider fetch fan-out.
package fetch

import "fmt"

// ErrorKind classifies why a fetch step failed. Keeping the kind explicit
// (instead of collapsing everything to an absent value) lets the token
// resolver distinguish "legitimately absent" from "failed to determine" and
// keeps non-auth failures from triggering re-login flows.
type ErrorKind string

const (
	// KindNone means the step succeeded.
	KindNone ErrorKind = ""
	// KindCredentialAbsent means no usable token was found. A state, not
	// an error.
	KindCredentialAbsent ErrorKind = "credential_absent"
	// KindAuthFailure means a token was present but rejected upstream.
	// This is the only kind that drives the refresh/re-login path.
	KindAuthFailure ErrorKind = "auth_failure"
	// KindTransient covers network errors, timeouts, and malformed
	// responses: unrelated to auth and never a re-login trigger.
	KindTransient ErrorKind = "transient"
	// KindLoginLaunch means the external re-authentication flow could not
	// even be started.
	KindLoginLaunch ErrorKind = "login_launch_failure"
)

// Failure couples an error kind with a human-readable message for the
// SubscriptionInfo error field.
type Failure struct {
	Kind    ErrorKind
	Message string
}

// OK is the zero Failure.
var OK = Failure{}

func (f Failure) IsZero() bool { return f.Kind == KindNone }
func (f Failure) IsAuth() bool { return f.Kind == KindAuthFailure }

func (f Failure) Error() string {
	if f.Message != "" {
		return f.Message
	}
	return string(f.Kind)
}

// Fail builds a Failure with a formatted message.
func Fail(kind ErrorKind, format string, args ...any) Failure {
	return Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
