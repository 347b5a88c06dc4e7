package omada

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTP client constants.
const (
	// tokenHeader carries the session token on authenticated calls.
	tokenHeader = "Csrf-Token"

	// maxEnvelopeDepth is how many nested result envelopes are peeled.
	// The controller nests at most one envelope inside the outer one;
	// a fixed depth avoids swallowing payload fields named "result".
	maxEnvelopeDepth = 2

	// maxResponseSize caps response bodies read into memory (8 MB).
	maxResponseSize = 8 * 1024 * 1024

	// defaultTimeout is used when ClientConfig.Timeout is zero.
	defaultTimeout = 30 * time.Second
)

// ClientConfig holds connection settings for the controller.
type ClientConfig struct {
	// Host is the controller hostname or IP.
	Host string

	// Port is the HTTPS management port (typically 8043).
	Port int

	// VerifyTLS enables certificate verification. Embedded controllers
	// ship self-signed certificates, so this defaults to off.
	VerifyTLS bool

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// Client issues HTTP calls against an Omada controller and classifies
// failures into the bridge error taxonomy.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	// noRedirect is used for the discovery call, where the redirect
	// Location header itself is the payload of interest.
	noRedirect *http.Client
	logger     Logger
}

// NewClient creates a controller client.
func NewClient(cfg ClientConfig, logger Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS, //nolint:gosec // self-signed controller certs
		},
	}

	return &Client{
		baseURL: fmt.Sprintf("https://%s:%d", cfg.Host, cfg.Port),
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		noRedirect: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// BaseURL returns the controller base URL (scheme, host, port).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DiscoverControllerID performs the unauthenticated discovery call.
// The controller answers GET / with a redirect whose Location path
// starts with the controller instance identifier; that identifier
// prefixes every v2 API path.
func (c *Client) DiscoverControllerID(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("%w: building discovery request: %v", ErrTransport, err)
	}

	resp, err := c.noRedirect.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: discovery call: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize)) //nolint:errcheck

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("%w: discovery response carried no redirect location", ErrTransport)
	}

	// Location looks like "/{controllerID}/login" or a full URL ending
	// in that path. The first path segment is the instance identifier.
	if idx := strings.Index(location, "://"); idx >= 0 {
		location = location[idx+3:]
		if slash := strings.Index(location, "/"); slash >= 0 {
			location = location[slash:]
		}
	}
	parts := strings.Split(strings.TrimPrefix(location, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", fmt.Errorf("%w: cannot extract controller id from redirect %q", ErrTransport, location)
	}
	return parts[0], nil
}

// Login performs the credential exchange against the given controller
// instance. Returns the session token on success. A response without a
// token is an authentication failure.
func (c *Client) Login(ctx context.Context, controllerID, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding credentials: %v", ErrAuth, err)
	}

	url := fmt.Sprintf("%s/%s/api/v2/login", c.baseURL, controllerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building login request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	result, err := c.do(req)
	if err != nil {
		return "", err
	}

	var login loginResult
	if err := json.Unmarshal(result, &login); err != nil {
		return "", fmt.Errorf("%w: decoding login result: %v", ErrAuth, err)
	}
	if login.Token == "" {
		return "", fmt.Errorf("%w: login response missing token", ErrAuth)
	}
	return login.Token, nil
}

// Get issues an authenticated GET against an API path (relative to the
// controller instance, e.g. "abc123/api/v2/sites/S1/clients") and
// returns the unwrapped result payload.
func (c *Client) Get(ctx context.Context, token, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set(tokenHeader, token)

	return c.do(req)
}

// Patch issues an authenticated PATCH with a JSON body and returns the
// unwrapped result payload.
func (c *Client) Patch(ctx context.Context, token, path string, body any) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding patch body: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/"+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set(tokenHeader, token)

	return c.do(req)
}

// do executes a request and classifies the outcome: connection-level
// failures and unexpected statuses are ErrTransport, 401 is ErrAuth,
// and a non-zero errorCode in a 200 body is ErrApplication. On success
// the result payload is returned with envelopes peeled.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s %s returned 401", ErrAuth, req.Method, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrTransport, req.Method, req.URL.Path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding response envelope: %v", ErrTransport, err)
	}
	if env.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: code %d: %s", ErrApplication, env.ErrorCode, env.Msg)
	}

	return unwrapResult(env.Result), nil
}

// unwrapResult peels nested result envelopes up to maxEnvelopeDepth.
// An inner object only counts as an envelope when it carries both a
// "result" and an "errorCode" key, so payload data that happens to
// contain a field named "result" is left intact.
func unwrapResult(result json.RawMessage) json.RawMessage {
	for depth := 1; depth < maxEnvelopeDepth; depth++ {
		var probe struct {
			ErrorCode *int            `json:"errorCode"`
			Result    json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(result, &probe); err != nil {
			return result
		}
		if probe.ErrorCode == nil || probe.Result == nil {
			return result
		}
		result = probe.Result
	}
	return result
}
