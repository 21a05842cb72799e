package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	authCookie    = "Authorization"
	refreshCookie = "RefreshToken"
)

type Tokens struct {
	Access  string    `json:"accessToken"`
	Refresh string    `json:"refreshToken"`
	Expiry  time.Time `json:"expiry,omitzero"`
}

// Expired reports whether the access token is past its exp claim. A token
// without a readable claim never expires here; GRID will reject it instead.
func (t Tokens) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// TokenExpiry reads the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Auth handles the cookie based login endpoints, which are not bearer
// authenticated.
type Auth struct {
	requester
	lolURL string
}

func NewAuth(opts ...Option) *Auth {
	s := newSettings(opts)
	return &Auth{
		requester: newRequester(s, &http.Client{Transport: s.transport}),
		lolURL:    s.lolURL,
	}
}

// Login exchanges credentials for the token pair GRID sets as cookies.
func (a *Auth) Login(ctx context.Context, username, password string) (Tokens, error) {
	payload, err := json.Marshal(map[string]string{"loginId": username, "password": password})
	if err != nil {
		return Tokens{}, err
	}

	ctx, cancel := a.bounded(ctx)
	defer cancel()
	resp, err := a.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.lolURL+"/auth/login", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return Tokens{}, fmt.Errorf("login: %w", err)
	}
	defer drain(resp)

	var t Tokens
	for _, c := range resp.Cookies() {
		switch c.Name {
		case authCookie:
			t.Access = c.Value
		case refreshCookie:
			t.Refresh = c.Value
		}
	}
	if t.Access == "" {
		return Tokens{}, ErrMissingTokens
	}
	t.Expiry, _ = TokenExpiry(t.Access)
	return t, nil
}

// Logout ends the session on GRID's side.
func (a *Auth) Logout(ctx context.Context, t Tokens) error {
	ctx, cancel := a.bounded(ctx)
	defer cancel()
	resp, err := a.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.lolURL+"/auth/logout", nil)
		if err != nil {
			return nil, err
		}
		req.AddCookie(&http.Cookie{Name: authCookie, Value: t.Access})
		req.AddCookie(&http.Cookie{Name: refreshCookie, Value: t.Refresh})
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	drain(resp)
	return nil
}
