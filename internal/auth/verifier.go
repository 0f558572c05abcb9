package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized covers missing, malformed, or rejected credentials.
var ErrUnauthorized = errors.New("invalid or expired token")

// Identity is the stable result of verifying a bearer credential.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
}

// Verifier validates a bearer token against the auth collaborator.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// HTTPVerifier asks the auth service who a token belongs to. It holds no
// session state itself; every request is verified end-to-end.
type HTTPVerifier struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewHTTPVerifier builds a verifier for the auth service at baseURL.
func NewHTTPVerifier(baseURL, serviceKey string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify resolves the token to an identity, or ErrUnauthorized when the auth
// service rejects it.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.serviceKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrUnauthorized
	default:
		return Identity{}, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("decode auth response: %w", err)
	}
	if identity.UserID == "" {
		return Identity{}, ErrUnauthorized
	}
	return identity, nil
}
