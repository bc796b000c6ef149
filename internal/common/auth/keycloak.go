// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deal-analyzer/internal/common/errors"
	commonhttp "deal-analyzer/internal/common/http"
)

// KeycloakClient validates bearer tokens through Keycloak token introspection.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(timeout),
	}
}

// ValidateToken checks if an access token is valid and active.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewServiceUnavailableError("token introspection: " + err.Error())
	}
	defer resp.Body.Close()

	if isTransientHTTPError(resp.StatusCode) {
		return nil, errors.NewServiceUnavailableError(fmt.Sprintf("token introspection returned %d", resp.StatusCode))
	}

	var tokenInfo TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("decode introspection response: %w", err))
	}

	if !tokenInfo.Active || tokenInfo.Sub == "" {
		return nil, errors.NewUnauthorizedError("access token is expired, revoked or malformed")
	}

	return &tokenInfo, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// TokenInfo holds the information returned by the token introspection endpoint.
type TokenInfo struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Sub       string `json:"sub,omitempty"` // user ID
	Iss       string `json:"iss,omitempty"`
}
