package session

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

var ErrNoToken = errors.New("no session token configured")

// fileTokenSource re-reads the token file on every call so a token refreshed
// by another process is picked up without a restart.
type fileTokenSource struct {
	path string
}

func (s *fileTokenSource) Token() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// NewTokenSource prefers an explicit token over a token file.
func NewTokenSource(token, tokenFile string) oauth2.TokenSource {
	if token = strings.TrimSpace(token); token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	}
	if tokenFile != "" {
		return &fileTokenSource{path: tokenFile}
	}
	return oauth2.StaticTokenSource(&oauth2.Token{})
}

// BearerToken returns the current access token from src.
func BearerToken(src oauth2.TokenSource) (string, error) {
	t, err := src.Token()
	if err != nil {
		return "", err
	}
	if t.AccessToken == "" {
		return "", ErrNoToken
	}
	return t.AccessToken, nil
}
