package provider

import (
	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/httpclient"
)

// Classify sorts an HTTP response from a provider API into the error
// taxonomy. 401/403 is an authentication failure (the only kind that may
// trigger refresh/re-login); any other non-200 status or a JSON decode error
// is transient and must never start a login flow.
func Classify(resp *httpclient.Response, what string) fetch.Failure {
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return fetch.Fail(fetch.KindAuthFailure, "%s rejected the token (HTTP %d)", what, resp.StatusCode)
	}
	if resp.StatusCode != 200 {
		return fetch.Fail(fetch.KindTransient, "%s request failed: HTTP %d (%s)", what, resp.StatusCode, httpclient.SummarizeBody(resp.Body))
	}
	if resp.JSONErr != nil {
		return fetch.Fail(fetch.KindTransient, "invalid response from %s: %v", what, resp.JSONErr)
	}
	return fetch.OK
}
