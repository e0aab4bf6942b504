package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testProvider(t *testing.T, usageURL, meURL string) *Cursor {
	t.Helper()
	return &Cursor{
		usageURL: usageURL,
		meURL:    meURL,
		timeout:  5 * time.Second,
	}
}

func writeSession(t *testing.T, c *Cursor, doc any) {
	t.Helper()
	c.store.Path = filepath.Join(t.TempDir(), "cursor.json")
	var data []byte
	switch v := doc.(type) {
	case string:
		data = []byte(v)
	default:
		data, _ = json.Marshal(v)
	}
	if err := os.WriteFile(c.store.Path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFetch_UsageAndIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/usage-summary", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value != "sess-1" {
			t.Errorf("session cookie = %v, %v", cookie, err)
		}
		fmt.Fprint(w, `{
			"billingCycleEnd": "2026-03-15T00:00:00.000Z",
			"membershipType": "pro",
			"individualUsage": {
				"plan": {"used": 1550, "limit": 2000, "totalPercentUsed": 77.5},
				"onDemand": {"enabled": true, "used": 325, "limit": 5000}
			}
		}`)
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"email": "dev@example.com"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testProvider(t, srv.URL+"/api/usage-summary", srv.URL+"/api/auth/me")
	writeSession(t, c, map[string]string{"session_token": "sess-1"})

	info := c.Fetch(context.Background())
	if info.Error != "" {
		t.Fatalf("Error = %q", info.Error)
	}
	if !strings.Contains(info.UsageText, "plan: 78%") {
		t.Errorf("UsageText = %q, want rounded server percentage", info.UsageText)
	}
	if !strings.Contains(info.UsageText, "dev@example.com") || !strings.Contains(info.UsageText, "Pro") {
		t.Errorf("UsageText = %q, missing identity line", info.UsageText)
	}
	if info.ResetTime == "" {
		t.Error("ResetTime empty, want billing cycle end")
	}
	if info.LimitNote != "on-demand $3.25 of $50.00" {
		t.Errorf("LimitNote = %q", info.LimitNote)
	}
}

func TestFetch_ExpiredSessionIsTerminal(t *testing.T) {
	var usageCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/usage-summary", func(w http.ResponseWriter, r *http.Request) {
		usageCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testProvider(t, srv.URL+"/api/usage-summary", srv.URL+"/api/auth/me")
	writeSession(t, c, map[string]string{"session_token": "sess-dead"})

	info := c.Fetch(context.Background())
	if !strings.Contains(info.Error, "auth cursor") {
		t.Errorf("Error = %q, want manual re-auth instruction", info.Error)
	}
	// No refresh grant exists; the call must not be retried.
	if got := usageCalls.Load(); got != 1 {
		t.Errorf("usage calls = %d, want 1", got)
	}
}

func TestFetch_IdentityFailureIsNonFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/usage-summary", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"membershipType": "ultra", "individualUsage": {"plan": {"used": 500, "limit": 1000}}}`)
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testProvider(t, srv.URL+"/api/usage-summary", srv.URL+"/api/auth/me")
	writeSession(t, c, map[string]string{"session_token": "sess-1"})

	info := c.Fetch(context.Background())
	if info.Error != "" {
		t.Fatalf("Error = %q, identity failure must not fail the fetch", info.Error)
	}
	// Percentage derived from cents when the server omits its own.
	if !strings.Contains(info.UsageText, "plan: 50%") {
		t.Errorf("UsageText = %q", info.UsageText)
	}
	if !strings.Contains(info.UsageText, "Ultra") {
		t.Errorf("UsageText = %q, membershipType from usage payload not used", info.UsageText)
	}
}

func TestFetch_MissingTokenNeedsManualAuth(t *testing.T) {
	c := testProvider(t, "http://unreachable.invalid", "http://unreachable.invalid")
	c.store.Path = filepath.Join(t.TempDir(), "cursor.json")

	info := c.Fetch(context.Background())
	if !strings.Contains(info.Error, "auth cursor") {
		t.Errorf("Error = %q", info.Error)
	}
}

func TestLoadSessionToken_Formats(t *testing.T) {
	tests := []struct {
		name string
		doc  any
		want string
	}{
		{"session_token key", map[string]string{"session_token": "t1"}, "t1"},
		{"token key", map[string]string{"token": "t2"}, "t2"},
		{"session_key key", map[string]string{"session_key": "t3"}, "t3"},
		{"session key", map[string]string{"session": "t4"}, "t4"},
		{"bare token", "raw-cookie-value\n", "raw-cookie-value"},
		{"empty object", map[string]string{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Cursor{}
			writeSession(t, c, tt.doc)
			if got := c.loadSessionToken(); got != tt.want {
				t.Errorf("loadSessionToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOnDemandDisabledHasNoNote(t *testing.T) {
	var usage usageSummary
	if err := json.Unmarshal([]byte(`{
		"individualUsage": {"plan": {"totalPercentUsed": 10}, "onDemand": {"enabled": false, "used": 100}}
	}`), &usage); err != nil {
		t.Fatal(err)
	}
	if usage.onDemand() != nil {
		t.Error("onDemand() non-nil while disabled")
	}
}
