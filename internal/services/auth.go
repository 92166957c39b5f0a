package services

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenSource returns a static bearer token source, or nil when token is empty.
func TokenSource(token string) oauth2.TokenSource {
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// NewHTTPClient returns an [http.Client] that authenticates every request with token.
//
// Without a token the default client is returned unchanged.
func NewHTTPClient(ctx context.Context, token string) *http.Client {
	ts := TokenSource(token)
	if ts == nil {
		return http.DefaultClient
	}
	return oauth2.NewClient(ctx, ts)
}

// AuthHeader builds the handshake headers for the push channel.
func AuthHeader(ts oauth2.TokenSource) (http.Header, error) {
	header := http.Header{}
	if ts == nil {
		return header, nil
	}

	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return header, nil
}
