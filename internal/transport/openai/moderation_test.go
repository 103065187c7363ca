package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func moderationServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/moderations" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input == "" {
			t.Errorf("expected input in request body, err=%v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestModerator(host string) *Moderator {
	return NewModerator(&Config{APIKey: "test-key", APIHost: host, Logger: zap.NewNop()})
}

func TestModerator_Moderate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		flagged bool
	}{
		{"allowed", `{"id":"modr-1","results":[{"flagged":false}]}`, false},
		{"flagged", `{"id":"modr-2","results":[{"flagged":true},{"flagged":false}]}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := moderationServer(t, http.StatusOK, tc.body)

			flagged, err := newTestModerator(server.URL).Moderate(context.Background(), "show me users")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if flagged != tc.flagged {
				t.Errorf("flagged = %v, want %v", flagged, tc.flagged)
			}
		})
	}
}

func TestModerator_EmptyResults(t *testing.T) {
	server := moderationServer(t, http.StatusOK, `{"id":"modr-3","results":[]}`)

	if _, err := newTestModerator(server.URL).Moderate(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty results")
	}
}

func TestModerator_ProviderError(t *testing.T) {
	server := moderationServer(t, http.StatusInternalServerError,
		`{"error":{"message":"overloaded","type":"server_error"}}`)

	if _, err := newTestModerator(server.URL).Moderate(context.Background(), "q"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
