package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nordvik-media/blog-api/internal/config"
)

// OIDCClient drives the authorization-code flow against the Microsoft
// identity platform: it builds the authorization URL, exchanges the
// returned code at the token endpoint, and builds the logout URL.
type OIDCClient struct {
	httpClient  *http.Client
	config      *config.EntraIDConfig
	redirectURL string
}

// TokenSet is the provider's response to a successful code exchange
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Serialize encodes the token set for the session token cache
func (t *TokenSet) Serialize() ([]byte, error) {
	return json.Marshal(t)
}

// DeserializeTokenSet decodes a token cache blob back into a TokenSet
func DeserializeTokenSet(data []byte) (*TokenSet, error) {
	var t TokenSet
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode token cache: %w", err)
	}
	return &t, nil
}

// NewOIDCClient creates a new identity provider client.
// redirectURL is the absolute callback URL registered with the provider.
func NewOIDCClient(cfg *config.EntraIDConfig, redirectURL string) *OIDCClient {
	return &OIDCClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		config:      cfg,
		redirectURL: redirectURL,
	}
}

// AuthCodeURL builds the authorization URL embedding the anti-forgery state
func (c *OIDCClient) AuthCodeURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.config.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", c.redirectURL)
	params.Set("response_mode", "query")
	params.Set("scope", c.config.Scopes)
	params.Set("state", state)

	return fmt.Sprintf("%s/oauth2/v2.0/authorize?%s", c.config.Authority(), params.Encode())
}

// Exchange trades an authorization code for a token set at the provider's
// token endpoint using the pre-registered client credential.
func (c *OIDCClient) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	tokenURL := fmt.Sprintf("%s/oauth2/v2.0/token", c.config.Authority())

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.config.ClientID)
	data.Set("client_secret", c.config.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", c.redirectURL)
	data.Set("scope", c.config.Scopes)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err == nil && errorResp.ErrorDescription != "" {
			return nil, fmt.Errorf("token exchange failed (%d): %s - %s", resp.StatusCode, errorResp.Error, errorResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var tokens TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if tokens.IDToken == "" {
		return nil, fmt.Errorf("token response missing id_token")
	}

	return &tokens, nil
}

// LogoutURL builds the provider logout URL that also ends the Microsoft web
// session, returning the browser to postLogoutRedirect afterwards.
func (c *OIDCClient) LogoutURL(postLogoutRedirect string) string {
	params := url.Values{}
	params.Set("post_logout_redirect_uri", postLogoutRedirect)

	return fmt.Sprintf("%s/oauth2/v2.0/logout?%s", c.config.Authority(), params.Encode())
}
