// Package auth gates the ingestion and admin endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/akave-ai/nbstreamer/internal/config"
)

// ErrUnauthorized is wrapped by every rejection.
var ErrUnauthorized = errors.New("unauthorized")

const (
	TypeNone   = "none"
	TypeBearer = "bearer"
	TypeBasic  = "basic"
	TypeHeader = "header"
	TypeJWT    = "jwt"
)

// Authenticator decides whether a request may proceed.
type Authenticator interface {
	Authenticate(r *http.Request) error
	// Challenge is the WWW-Authenticate value sent with a 401, or "".
	Challenge() string
}

// New builds the authenticator selected by cfg.Type.
func New(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Type {
	case "", TypeNone:
		return none{}, nil
	case TypeBearer:
		if cfg.Token == "" {
			return nil, fmt.Errorf("bearer auth requires a token")
		}
		return &bearer{token: []byte(cfg.Token)}, nil
	case TypeBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("basic auth requires username and password")
		}
		return &basic{user: []byte(cfg.Username), pass: []byte(cfg.Password)}, nil
	case TypeHeader:
		if cfg.HeaderName == "" || cfg.HeaderValue == "" {
			return nil, fmt.Errorf("header auth requires header name and value")
		}
		return &header{name: http.CanonicalHeaderKey(cfg.HeaderName), value: []byte(cfg.HeaderValue)}, nil
	case TypeJWT:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("jwt auth requires a secret")
		}
		return &jwtAuth{secret: []byte(cfg.JWTSecret)}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

func equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", fmt.Errorf("%w: missing authorization header", ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fmt.Errorf("%w: expected bearer token", ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}

type none struct{}

func (none) Authenticate(*http.Request) error { return nil }
func (none) Challenge() string                { return "" }

type bearer struct{ token []byte }

func (b *bearer) Authenticate(r *http.Request) error {
	token, err := bearerToken(r)
	if err != nil {
		return err
	}
	if !equal([]byte(token), b.token) {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return nil
}

func (b *bearer) Challenge() string { return "Bearer" }

type basic struct{ user, pass []byte }

func (b *basic) Authenticate(r *http.Request) error {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return fmt.Errorf("%w: missing basic credentials", ErrUnauthorized)
	}
	// Both comparisons always run.
	userOK := equal([]byte(user), b.user)
	passOK := equal([]byte(pass), b.pass)
	if !userOK || !passOK {
		return fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return nil
}

func (b *basic) Challenge() string { return `Basic realm="nbstreamer"` }

type header struct {
	name  string
	value []byte
}

func (h *header) Authenticate(r *http.Request) error {
	v := r.Header.Get(h.name)
	if v == "" {
		return fmt.Errorf("%w: missing %s header", ErrUnauthorized, h.name)
	}
	if !equal([]byte(v), h.value) {
		return fmt.Errorf("%w: invalid %s header", ErrUnauthorized, h.name)
	}
	return nil
}

func (h *header) Challenge() string { return "" }

type jwtAuth struct{ secret []byte }

func (j *jwtAuth) Authenticate(r *http.Request) error {
	raw, err := bearerToken(r)
	if err != nil {
		return err
	}
	parsed, err := jwtlib.ParseWithClaims(raw, &jwtlib.RegisteredClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return j.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return nil
}

func (j *jwtAuth) Challenge() string { return "Bearer" }
