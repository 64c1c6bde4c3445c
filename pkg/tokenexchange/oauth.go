package tokenexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsParams configures a service-token fetch.
type ClientCredentialsParams struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// NewClientCredentialsFetch builds a FetchFunc for the client-credentials
// grant, backed by golang.org/x/oauth2/clientcredentials — the same
// provider-glue library the pack's haasonsaas-nexus repo depends on for
// its OAuth flows, generalized here to the machine-to-machine grant it
// doesn't itself use.
func NewClientCredentialsFetch(p ClientCredentialsParams, httpClient *http.Client) FetchFunc {
	cfg := &clientcredentials.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		TokenURL:     p.TokenURL,
		Scopes:       p.Scopes,
	}

	return func(ctx context.Context) (AccessToken, error) {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		tok, err := cfg.Token(ctx)
		if err != nil {
			return AccessToken{}, fmt.Errorf("tokenexchange: client credentials fetch: %w", err)
		}
		return AccessToken{
			Value:     tok.AccessToken,
			ExpiresAt: tok.Expiry,
			Scope:     strings.Join(p.Scopes, " "),
		}, nil
	}
}

// TokenExchangeParams configures an RFC 8693 token-exchange fetch.
type TokenExchangeParams struct {
	TokenURL           string
	ClientID           string
	ClientSecret       string
	SubjectToken       string
	SubjectTokenType   string
	RequestedAudience  string
	RequestedTokenType string
}

const grantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"

type tokenExchangeResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
	Scope           string `json:"scope"`
}

// NewTokenExchangeFetch builds a FetchFunc implementing RFC 8693 token
// exchange. No library in the reference corpus implements this RFC, so the
// request is assembled directly against net/http (see DESIGN.md stdlib
// justification); the response shape still rides on oauth2's token
// semantics (expiry, scope) for consistency with NewClientCredentialsFetch.
func NewTokenExchangeFetch(p TokenExchangeParams, httpClient *http.Client) FetchFunc {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	subjectTokenType := p.SubjectTokenType
	if subjectTokenType == "" {
		subjectTokenType = "urn:ietf:params:oauth:token-type:access_token"
	}

	return func(ctx context.Context) (AccessToken, error) {
		form := url.Values{}
		form.Set("grant_type", grantTypeTokenExchange)
		form.Set("client_id", p.ClientID)
		form.Set("client_secret", p.ClientSecret)
		form.Set("subject_token", p.SubjectToken)
		form.Set("subject_token_type", subjectTokenType)
		if p.RequestedAudience != "" {
			form.Set("audience", p.RequestedAudience)
		}
		if p.RequestedTokenType != "" {
			form.Set("requested_token_type", p.RequestedTokenType)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return AccessToken{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := httpClient.Do(req)
		if err != nil {
			return AccessToken{}, fmt.Errorf("tokenexchange: token exchange request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return AccessToken{}, fmt.Errorf("tokenexchange: token exchange endpoint returned %d", resp.StatusCode)
		}

		var out tokenExchangeResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return AccessToken{}, fmt.Errorf("tokenexchange: decode token exchange response: %w", err)
		}

		expiresAt := time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
		return AccessToken{
			Value:     out.AccessToken,
			ExpiresAt: expiresAt,
			Scope:     out.Scope,
		}, nil
	}
}
