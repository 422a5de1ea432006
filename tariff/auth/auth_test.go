package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tokenServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"access_token":"token123","token_type":"bearer","expires_in":3600}`)); err != nil {
			t.Errorf("write token: %v", err)
		}
	}))
}

func TestGetTokenAndSetAuthHeader(t *testing.T) {
	hits := 0
	server := tokenServer(t, &hits)
	defer server.Close()

	client := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: server.URL})
	ctx := context.Background()

	token, err := client.GetToken(ctx)
	if err != nil {
		t.Fatalf("GetToken returned error: %v", err)
	}
	if token != "token123" {
		t.Fatalf("unexpected token %s", token)
	}

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	if err := client.SetAuthHeader(ctx, req); err != nil {
		t.Fatalf("SetAuthHeader returned error: %v", err)
	}
	if auth := req.Header.Get("Authorization"); auth == "" {
		t.Fatalf("Authorization header not set")
	}
	if hits != 1 {
		t.Fatalf("expected one token request, got %d", hits)
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	hits := 0
	server := tokenServer(t, &hits)
	defer server.Close()

	client := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: server.URL})
	ctx := context.Background()

	if _, err := client.GetToken(ctx); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if _, err := client.GetToken(ctx); err != nil {
		t.Fatalf("cached GetToken: %v", err)
	}
	if hits != 1 {
		t.Fatalf("cache not used, %d token requests", hits)
	}
	if _, err := client.ForceRefresh(ctx); err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected refresh to hit the endpoint, got %d", hits)
	}
}

func TestConfEnabled(t *testing.T) {
	if (Conf{}).Enabled() {
		t.Fatalf("empty conf should be disabled")
	}
	if !(Conf{AuthURL: "http://auth"}).Enabled() {
		t.Fatalf("configured conf should be enabled")
	}
}
