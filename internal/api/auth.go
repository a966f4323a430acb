package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

var ErrNoToken = errors.New("api: no stored token")

// Credentials is what `taskfuse login` persists.
type Credentials struct {
	BaseURL string        `json:"base_url"`
	Email   string        `json:"email"`
	Token   *oauth2.Token `json:"token"`
}

func oauthConfig(baseURL string) *oauth2.Config {
	return &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(baseURL, "/") + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Login exchanges email and password for a bearer token.
func Login(ctx context.Context, baseURL, email, password string) (*oauth2.Token, error) {
	tok, err := oauthConfig(baseURL).PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.Response != nil && retrieve.Response.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("api: login: %w", err)
	}
	return tok, nil
}

// PasswordTokenSource performs the password grant lazily and reuses the
// token until it expires or is invalidated. The backend's /token response
// carries no expires_in, so a rejected request is the only expiry signal.
type PasswordTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	email    string
	password string

	mu  sync.Mutex
	tok *oauth2.Token
}

// PasswordSource returns a source for email and password. ctx scopes the
// token requests.
func PasswordSource(ctx context.Context, baseURL, email, password string) *PasswordTokenSource {
	return &PasswordTokenSource{
		ctx:      ctx,
		conf:     oauthConfig(baseURL),
		email:    email,
		password: password,
	}
}

func (s *PasswordTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok.Valid() {
		return s.tok, nil
	}
	tok, err := s.conf.PasswordCredentialsToken(s.ctx, s.email, s.password)
	if err != nil {
		return nil, err
	}
	s.tok = tok
	return tok, nil
}

// Invalidate drops the cached token so the next request grants a new one.
func (s *PasswordTokenSource) Invalidate() {
	s.mu.Lock()
	s.tok = nil
	s.mu.Unlock()
}

func StaticSource(tok *oauth2.Token) oauth2.TokenSource {
	return oauth2.StaticTokenSource(tok)
}

func SaveCredentials(path string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("api: create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("api: open token file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("api: write token file: %w", err)
	}
	return nil
}

func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, ErrNoToken
		}
		return Credentials{}, fmt.Errorf("api: open token file: %w", err)
	}
	defer f.Close()

	var creds Credentials
	if err := json.NewDecoder(f).Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("api: decode token file: %w", err)
	}
	if creds.Token == nil || creds.Token.AccessToken == "" {
		return Credentials{}, ErrNoToken
	}
	return creds, nil
}
