package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// TokenProvider exchanges a user's stored refresh token for a short-lived
// access token.
type TokenProvider interface {
	AccessToken(ctx context.Context, refreshToken string) (string, error)
}

// OAuthTokenProvider performs the refresh-token grant against the provider's
// token endpoint. It keeps no token cache; every call is one exchange.
type OAuthTokenProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func NewTokenProvider(clientID, clientSecret, tokenURL string, httpClient *http.Client) *OAuthTokenProvider {
	return &OAuthTokenProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

func (p *OAuthTokenProvider) AccessToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrInvalidGrant
	}
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		if isInvalidGrant(err) {
			return "", fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("refresh access token: empty access token in response")
	}
	return tok.AccessToken, nil
}

func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	return re.ErrorCode == "invalid_grant" || strings.Contains(string(re.Body), "invalid_grant")
}
