package omada

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

// newTestClient points a client at an httptest TLS server. The server's
// self-signed certificate is accepted because VerifyTLS defaults off.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing test server port: %v", err)
	}

	return NewClient(ClientConfig{
		Host:    u.Hostname(),
		Port:    port,
		Timeout: 5 * time.Second,
	}, nil)
}

func TestDiscoverControllerID(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/abc123/login", http.StatusFound)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	id, err := client.DiscoverControllerID(context.Background())
	if err != nil {
		t.Fatalf("DiscoverControllerID failed: %v", err)
	}
	if id != "abc123" {
		t.Errorf("expected abc123, got %q", id)
	}
}

func TestDiscoverControllerIDAbsoluteLocation(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "https://controller.lan:8043/abc123/login")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	id, err := client.DiscoverControllerID(context.Background())
	if err != nil {
		t.Fatalf("DiscoverControllerID failed: %v", err)
	}
	if id != "abc123" {
		t.Errorf("expected abc123, got %q", id)
	}
}

func TestDiscoverControllerIDNoRedirect(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.DiscoverControllerID(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/abc123/api/v2/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decoding credentials: %v", err)
		}
		if creds["username"] != "admin" || creds["password"] != "secret" {
			t.Errorf("unexpected credentials %v", creds)
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"errorCode": 0,
			"result":    map[string]string{"token": "tok-1"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	token, err := client.Login(context.Background(), "abc123", "admin", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("expected token tok-1, got %q", token)
	}
}

func TestLoginMissingToken(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"errorCode": 0,
			"result":    map[string]string{},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Login(context.Background(), "abc123", "admin", "secret")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth for missing token, got %v", err)
	}
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"errorCode": -30109,
			"msg":       "invalid credentials",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Login(context.Background(), "abc123", "admin", "wrong")
	if !errors.Is(err, ErrApplication) {
		t.Errorf("expected ErrApplication for rejected login, got %v", err)
	}
}

func TestGetClassifies401(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Get(context.Background(), "tok", "abc123/api/v2/sites/S1/clients")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth for 401, got %v", err)
	}
}

func TestGetClassifiesApplicationError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"errorCode": 42,
			"msg":       "site not found",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Get(context.Background(), "tok", "abc123/api/v2/sites/S1/clients")
	if !errors.Is(err, ErrApplication) {
		t.Errorf("expected ErrApplication, got %v", err)
	}
}

func TestGetSendsTokenHeader(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Csrf-Token"); got != "tok-9" {
			t.Errorf("expected token header tok-9, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"errorCode": 0, "result": map[string]any{}}) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.Get(context.Background(), "tok-9", "abc123/api/v2/sites"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestUnwrapResult(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"no nesting",
			`{"data":[1,2]}`,
			`{"data":[1,2]}`,
		},
		{
			"one nested envelope",
			`{"errorCode":0,"result":{"data":[1,2]}}`,
			`{"data":[1,2]}`,
		},
		{
			"payload field named result is kept",
			`{"result":{"x":1}}`,
			`{"result":{"x":1}}`,
		},
		{
			"depth capped at two",
			`{"errorCode":0,"result":{"errorCode":0,"result":{"x":1}}}`,
			`{"errorCode":0,"result":{"x":1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unwrapResult(json.RawMessage(tt.in))
			var a, b any
			if err := json.Unmarshal(got, &a); err != nil {
				t.Fatalf("invalid output: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.want), &b); err != nil {
				t.Fatalf("invalid want: %v", err)
			}
			aj, _ := json.Marshal(a)
			bj, _ := json.Marshal(b)
			if string(aj) != string(bj) {
				t.Errorf("got %s, want %s", aj, bj)
			}
		})
	}
}
