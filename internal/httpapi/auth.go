package httpapi

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/scrim-review/internal/grid"
	"github.com/DoyleJ11/scrim-review/internal/session"
	"github.com/DoyleJ11/scrim-review/internal/syncer"
)

// SessionHeader carries the code returned by login. The code query parameter
// works too, for the websocket and plain links.
const SessionHeader = "X-Session-Code"

const codeAttempts = 10

// Authenticator is the GRID login surface.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (grid.Tokens, error)
	Logout(ctx context.Context, t grid.Tokens) error
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Code   string     `json:"code"`
	Expiry *time.Time `json:"expiry,omitempty"`
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	tokens, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.log.Info("login failed", zap.String("user", req.Username), zap.Error(err))
		if errors.Is(err, grid.ErrMissingTokens) || errors.Is(err, grid.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusBadGateway, "login failed")
		return
	}

	client := a.newClient(tokens)
	cfg := session.Config{
		Tokens: tokens,
		Client: client,
		Sync: func(ctx context.Context, rep syncer.Reporter) (syncer.Status, error) {
			return a.syncer.SyncOnce(ctx, client, syncer.Reporters{rep, a.reporter})
		},
		Interval: a.syncer.Interval(),
	}

	var (
		code string
		s    *session.Session
	)
	for i := 0; i < codeAttempts && s == nil; i++ {
		c, err := GenerateCode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate code")
			return
		}
		if s = a.hub.Create(r.Context(), c, cfg); s == nil {
			a.log.Debug("collision on code, regenerating", zap.String("code", c))
			continue
		}
		code = c
	}
	if s == nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	a.log.Info("session created", zap.String("code", code))

	if a.autoSync {
		if err := s.Request(r.Context()); err != nil {
			a.log.Warn("initial sync", zap.String("code", code), zap.Error(err))
		}
	}

	resp := loginResponse{Code: code}
	if !tokens.Expiry.IsZero() {
		resp.Expiry = &tokens.Expiry
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	s, code := sessionFrom(r.Context())
	if err := a.auth.Logout(r.Context(), s.Tokens()); err != nil {
		a.log.Warn("grid logout", zap.String("code", code), zap.Error(err))
	}
	a.hub.Remove(code)
	w.WriteHeader(http.StatusNoContent)
}

type ctxKey struct{}

type sessionRef struct {
	s    *session.Session
	code string
}

func sessionFrom(ctx context.Context) (*session.Session, string) {
	ref, _ := ctx.Value(ctxKey{}).(sessionRef)
	return ref.s, ref.code
}

// requireSession resolves the session code of the request and rejects
// requests without a live, unexpired session.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.Header.Get(SessionHeader)
		if code == "" {
			code = r.URL.Query().Get("code")
		}
		if code == "" {
			writeError(w, http.StatusUnauthorized, "missing session code")
			return
		}
		s := a.hub.Get(r.Context(), code)
		if s == nil {
			writeError(w, http.StatusUnauthorized, "unknown session")
			return
		}
		if s.Tokens().Expired(a.now()) {
			a.hub.Remove(code)
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, sessionRef{s: s, code: code})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
