package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// Provider is one OAuth identity provider.
type Provider interface {
	// Name is the path segment of the provider routes ("google").
	Name() string
	// AuthCodeURL is where the browser is sent to sign in.
	AuthCodeURL(state string) string
	// Identify exchanges the callback code for the signed-in identity.
	Identify(ctx context.Context, code string) (domain.Identity, error)
}

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider signs users in with their Google account.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider builds the Google provider. redirectURL must point at
// /auth/google/callback of this server.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Identify(ctx context.Context, code string) (domain.Identity, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return domain.Identity{}, err
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, fmt.Errorf("user info returned %s", resp.Status)
	}

	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.Identity{}, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.Sub == "" {
		return domain.Identity{}, fmt.Errorf("user info has no subject")
	}

	return domain.Identity{UserID: "google:" + info.Sub, Email: info.Email}, nil
}

// DevProvider signs anyone in as whatever email they type, without leaving
// the server. Only enabled by configuration for local development.
type DevProvider struct {
	callbackURL string
}

// NewDevProvider builds the dev provider; callbackURL is /auth/dev/callback.
func NewDevProvider(callbackURL string) *DevProvider {
	return &DevProvider{callbackURL: callbackURL}
}

func (p *DevProvider) Name() string { return "dev" }

// AuthCodeURL sends the browser straight back to the callback. The email is
// picked on the callback page (?code=<email>).
func (p *DevProvider) AuthCodeURL(state string) string {
	return p.callbackURL + "?state=" + url.QueryEscape(state)
}

// Identify derives a stable user id from the email.
func (p *DevProvider) Identify(_ context.Context, code string) (domain.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(code))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Identity{}, fmt.Errorf("dev sign-in needs an email address")
	}
	return domain.Identity{
		UserID: "dev:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
		Email:  email,
	}, nil
}
