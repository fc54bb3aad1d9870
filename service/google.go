package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleOAuth runs the authorization-code flow against Google.
type GoogleOAuth struct {
	Config *oauth2.Config
	// UserInfoURL defaults to Google's OpenID userinfo endpoint; tests point it at a local server.
	UserInfoURL string
	HTTP        *http.Client
}

// GoogleProfile is the subset of userinfo the account needs.
type GoogleProfile struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL: googleUserInfoURL,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthCodeURL is where the browser is sent to consent.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.Config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for the signed-in user's profile.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.HTTP)
	token, err := g.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.Config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: google returned %d", resp.StatusCode)
	}
	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("fetch userinfo: no email in profile")
	}
	return &profile, nil
}
