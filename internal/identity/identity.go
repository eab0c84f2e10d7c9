package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/shelf/internal/shared"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://identitytoolkit.googleapis.com"
	defaultTokenURL = "https://securetoken.googleapis.com/v1/token"

	signInPath = "/v1/accounts:signInWithPassword"
	signUpPath = "/v1/accounts:signUp"
)

// Credential is what the provider hands back for a signed-in account.
type Credential struct {
	UID          string
	Email        string
	Name         string
	IDToken      string
	RefreshToken string
	Expiry       time.Time
}

// Claims are the ID token fields the client cares about.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// UID returns the provider user id, falling back to the subject claim.
func (c *Claims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// ParseClaims decodes an ID token without verifying its signature.
func ParseClaims(idToken string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		return nil, fmt.Errorf("%w: malformed id token: %v", shared.ErrAuthFailed, err)
	}
	return &claims, nil
}

// Options configures a [Provider].
type Options struct {
	APIKey     string
	AuthURL    string
	TokenURL   string
	HTTPClient *http.Client
}

// Provider is a client for the identity provider REST API.
type Provider struct {
	apiKey     string
	authURL    string
	config     *oauth2.Config
	httpClient *http.Client
}

// NewProvider creates a [Provider]. An API key is required.
func NewProvider(opts Options) (*Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: identity api_key is required", shared.ErrMissingConfig)
	}
	if opts.AuthURL == "" {
		opts.AuthURL = defaultAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	tokenURL, err := withKey(opts.TokenURL, opts.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: token_url: %v", shared.ErrInvalidConfig, err)
	}

	return &Provider{
		apiKey:  opts.APIKey,
		authURL: strings.TrimSuffix(opts.AuthURL, "/"),
		config: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: opts.HTTPClient,
	}, nil
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn authenticates an existing account with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	return p.passwordFlow(ctx, signInPath, email, password)
}

// SignUp creates an account and returns its credential; the new account is signed in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*Credential, error) {
	return p.passwordFlow(ctx, signUpPath, email, password)
}

func (p *Provider) passwordFlow(ctx context.Context, path, email, password string) (*Credential, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrMissingArgument)
	}

	body, err := json.Marshal(passwordRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint, err := withKey(p.authURL+path, p.apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: auth_url: %v", shared.ErrInvalidConfig, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: %s", shared.ErrAuthFailed, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var result passwordResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return p.credentialFrom(result)
}

func (p *Provider) credentialFrom(r passwordResponse) (*Credential, error) {
	if r.IDToken == "" || r.RefreshToken == "" {
		return nil, fmt.Errorf("%w: provider returned no tokens", shared.ErrAuthFailed)
	}

	cred := &Credential{
		UID:          r.LocalID,
		Email:        r.Email,
		Name:         r.DisplayName,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
	}

	if seconds, err := strconv.Atoi(r.ExpiresIn); err == nil {
		cred.Expiry = time.Now().Add(time.Duration(seconds) * time.Second)
	}

	if claims, err := ParseClaims(r.IDToken); err == nil {
		if cred.UID == "" {
			cred.UID = claims.UID()
		}
		if cred.Name == "" {
			cred.Name = claims.Name
		}
		if claims.ExpiresAt != nil {
			cred.Expiry = claims.ExpiresAt.Time
		}
	}

	return cred, nil
}

// TokenSource returns a source of bearer tokens for cred that refreshes through the provider when the ID token expires.
//
// ctx is used for refresh requests and should outlive individual API calls.
func (p *Provider) TokenSource(ctx context.Context, cred *Credential) oauth2.TokenSource {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	initial := &oauth2.Token{
		AccessToken:  cred.IDToken,
		TokenType:    "Bearer",
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}
	return p.config.TokenSource(ctx, initial)
}

// BearerToken extracts the value to send in an Authorization header.
//
// The refresh endpoint returns the ID token both as id_token and access_token; id_token wins when present.
func BearerToken(tok *oauth2.Token) string {
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		return idToken
	}
	return tok.AccessToken
}

func withKey(raw, apiKey string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
