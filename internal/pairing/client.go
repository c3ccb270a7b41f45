package pairing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultRequestTimeout = 30 * time.Second

// Client registers devices against the platform pairing API.
//
// Registration is a one-shot operation: it runs only when no credentials
// secret is configured or cached, and its result is persisted by the caller.
type Client struct {
	baseURL    string
	realm      string
	token      string
	httpClient *http.Client
}

// New creates a pairing client.
//
// Parameters:
//   - pairingURL: Base URL of the pairing API
//   - realm: The realm the device registers into
//   - token: The pairing token authorizing registration
//
// Returns:
//   - *Client: The configured client
//   - error: When a required argument is empty
func New(pairingURL, realm, token string) (*Client, error) {
	if pairingURL == "" {
		return nil, fmt.Errorf("%w: pairing URL is required", ErrRegistrationFailed)
	}
	if realm == "" {
		return nil, fmt.Errorf("%w: realm is required", ErrRegistrationFailed)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: pairing token is required", ErrRegistrationFailed)
	}

	return &Client{
		baseURL:    strings.TrimRight(pairingURL, "/"),
		realm:      realm,
		token:      token,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}, nil
}

// registrationRequest and registrationResponse mirror the pairing API
// envelopes.
type registrationRequest struct {
	Data registrationData `json:"data"`
}

type registrationData struct {
	HardwareID string `json:"hw_id"`
}

type registrationResponse struct {
	Data struct {
		CredentialsSecret string `json:"credentials_secret"`
	} `json:"data"`
}

// CheckToken pre-flights the pairing token: it decodes the token without
// verifying the signature and fails when the expiry has already passed.
// Tokens that do not decode as JWTs pass the check, the endpoint has the
// final word on those.
//
// Returns:
//   - error: ErrTokenExpired when the token expiry is in the past
func (c *Client) CheckToken() error {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, &claims); err != nil {
		return nil
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		age := time.Since(claims.ExpiresAt.Time).Round(time.Second)
		return fmt.Errorf("%w: expired %s ago, generate a new pairing token", ErrTokenExpired, age)
	}

	return nil
}

// Register obtains a credentials secret for the device.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: The hardware identity to register
//
// Returns:
//   - string: The credentials secret issued by the platform
//   - error: ErrTokenExpired, ErrUnauthorized or ErrRegistrationFailed,
//     wrapped with the operator remedy
func (c *Client) Register(ctx context.Context, deviceID string) (string, error) {
	if err := c.CheckToken(); err != nil {
		return "", err
	}

	body, err := json.Marshal(registrationRequest{Data: registrationData{HardwareID: deviceID}})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %w", ErrRegistrationFailed, err)
	}

	url := fmt.Sprintf("%s/v1/%s/agents/devices", c.baseURL, c.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w (check the pairing URL)", ErrRegistrationFailed, err)
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: HTTP %d (check the pairing token)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: HTTP 404 (check the realm and pairing URL)", ErrRegistrationFailed)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%w: HTTP %d", ErrRegistrationFailed, resp.StatusCode)
	}

	var out registrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrRegistrationFailed, err)
	}
	if out.Data.CredentialsSecret == "" {
		return "", fmt.Errorf("%w: response carried no credentials secret", ErrRegistrationFailed)
	}

	return out.Data.CredentialsSecret, nil
}
