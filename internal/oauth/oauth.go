// Package oauth provides shared OAuth credential types, expiration checking,
// and token refresh logic used by providers with OAuth-based authentication.
package oauth

import (
	"context"
	"time"

	"github.com/quotadash/quotadash/internal/credfile"
	"github.com/quotadash/quotadash/internal/httpclient"
)

// RefreshBuffer is the duration before token expiry at which a refresh is
// triggered. All providers share this value so refresh behavior is consistent.
const RefreshBuffer = 5 * time.Minute

// Credentials represents OAuth credentials in the canonical quotadash format.
// Providers normalize their CLI-specific formats to this type.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"` // RFC3339
	// IDToken, when present, is a JWT carrying identity claims (email,
	// plan hints). Never sent upstream; parsed locally only.
	IDToken string `json:"id_token,omitempty"`
}

// NeedsRefresh reports whether the credentials should be refreshed.
// Returns true if ExpiresAt is within RefreshBuffer of now, already past,
// or unparseable. Returns false if ExpiresAt is empty (unknown expiry).
func (c Credentials) NeedsRefresh() bool {
	if c.ExpiresAt == "" {
		return false
	}
	expiry, err := time.Parse(time.RFC3339, c.ExpiresAt)
	if err != nil {
		return true
	}
	return time.Now().UTC().Add(RefreshBuffer).After(expiry)
}

// TokenResponse represents the response from an OAuth token refresh endpoint.
type TokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	IDToken      string  `json:"id_token,omitempty"`
	ExpiresIn    float64 `json:"expires_in,omitempty"`
}

// RefreshConfig contains the provider-specific parameters for token refresh.
type RefreshConfig struct {
	// TokenURL is the OAuth token endpoint.
	TokenURL string
	// FormFields are additional form parameters beyond grant_type and
	// refresh_token (e.g. client_id, client_secret).
	FormFields map[string]string
	// Headers are provider-specific request options.
	Headers []httpclient.RequestOption
	// Store, when set, receives the refreshed token fields merged into the
	// provider's credential file.
	Store *credfile.Store
	// Timeout bounds the token request.
	Timeout time.Duration
}

// Refresh exchanges a refresh token for a new access token and persists the
// updated credentials. Returns nil if the refresh fails for any reason:
// refresh failure is a state, not a fault, and the caller decides whether to
// escalate to a full re-login.
func Refresh(ctx context.Context, refreshToken string, cfg RefreshConfig) *Credentials {
	if refreshToken == "" {
		return nil
	}

	form := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}
	for k, v := range cfg.FormFields {
		form[k] = v
	}

	client := httpclient.NewWithTimeout(cfg.Timeout)
	var tokenResp TokenResponse
	resp, err := client.PostFormCtx(ctx, cfg.TokenURL, form, &tokenResp, cfg.Headers...)
	if err != nil || resp.StatusCode != 200 || resp.JSONErr != nil {
		return nil
	}

	if tokenResp.AccessToken == "" {
		return nil
	}

	updated := &Credentials{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		IDToken:      tokenResp.IDToken,
	}

	if tokenResp.ExpiresIn > 0 {
		updated.ExpiresAt = time.Now().UTC().Add(time.Duration(tokenResp.ExpiresIn) * time.Second).Format(time.RFC3339)
	}

	// Preserve the old refresh token if the server didn't issue a new one.
	if updated.RefreshToken == "" {
		updated.RefreshToken = refreshToken
	}

	if cfg.Store != nil {
		fields := map[string]any{
			"access_token":  updated.AccessToken,
			"refresh_token": updated.RefreshToken,
		}
		if updated.ExpiresAt != "" {
			fields["expires_at"] = updated.ExpiresAt
		}
		if updated.IDToken != "" {
			fields["id_token"] = updated.IDToken
		}
		_ = cfg.Store.Merge(fields)
	}

	return updated
}
