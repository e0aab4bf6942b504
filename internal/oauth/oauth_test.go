package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quotadash/quotadash/internal/credfile"
)

func TestNeedsRefresh(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt string
		want      bool
	}{
		{"empty expiry never refreshes", "", false},
		{"far future", time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339), false},
		{"inside buffer", time.Now().UTC().Add(2 * time.Minute).Format(time.RFC3339), true},
		{"already expired", time.Now().UTC().Add(-time.Hour).Format(time.RFC3339), true},
		{"unparseable", "not-a-timestamp", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Credentials{ExpiresAt: tt.expiresAt}
			if got := c.NeedsRefresh(); got != tt.want {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefresh_ExchangesAndPersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q, want old-refresh", got)
		}
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "new-access",
			ExpiresIn:   3600,
		})
	}))
	defer srv.Close()

	store := &credfile.Store{Path: filepath.Join(t.TempDir(), "creds.json")}
	got := Refresh(context.Background(), "old-refresh", RefreshConfig{
		TokenURL: srv.URL,
		Store:    store,
	})
	if got == nil {
		t.Fatal("Refresh() = nil, want credentials")
	}
	if got.AccessToken != "new-access" {
		t.Errorf("access token = %q, want new-access", got.AccessToken)
	}
	if got.RefreshToken != "old-refresh" {
		t.Errorf("refresh token = %q, want old one preserved", got.RefreshToken)
	}
	if got.ExpiresAt == "" {
		t.Error("expires_at not set from expires_in")
	}

	data, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatalf("credentials not persisted: %v", err)
	}
	var persisted map[string]any
	_ = json.Unmarshal(data, &persisted)
	if persisted["access_token"] != "new-access" {
		t.Errorf("persisted access_token = %v, want new-access", persisted["access_token"])
	}
}

func TestRefresh_FailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	if got := Refresh(context.Background(), "bad", RefreshConfig{TokenURL: srv.URL}); got != nil {
		t.Errorf("Refresh() = %+v, want nil on HTTP 400", got)
	}
	if got := Refresh(context.Background(), "", RefreshConfig{TokenURL: srv.URL}); got != nil {
		t.Errorf("Refresh() = %+v, want nil with empty refresh token", got)
	}
}

func makeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	seg := base64.RawURLEncoding.EncodeToString
	return seg([]byte(`{"alg":"none"}`)) + "." + seg(payload) + ".sig"
}

func TestDecodeJWTClaims(t *testing.T) {
	token := makeJWT(t, map[string]any{
		"email": "dev@example.com",
		"https://api.openai.com/auth": map[string]any{
			"chatgpt_plan_type": "plus",
		},
	})

	claims := DecodeJWTClaims(token)
	if claims == nil {
		t.Fatal("DecodeJWTClaims() = nil")
	}
	if got := JWTStringClaim(claims, "email"); got != "dev@example.com" {
		t.Errorf("email claim = %q, want dev@example.com", got)
	}
	if got := JWTStringClaim(claims, "https://api.openai.com/auth", "chatgpt_plan_type"); got != "plus" {
		t.Errorf("plan claim = %q, want plus", got)
	}
}

func TestDecodeJWTClaims_Malformed(t *testing.T) {
	for _, token := range []string{"", "one.two", "a.!!!.c", "x.y.z.w"} {
		if got := DecodeJWTClaims(token); got != nil {
			t.Errorf("DecodeJWTClaims(%q) = %v, want nil", token, got)
		}
	}
}
