package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTAuthenticator accepts RS256 bearer tokens and acts as the principal
// named by the subject claim.
type JWTAuthenticator struct {
	keyFn    func(t *jwt.Token) (any, error)
	resolver PrincipalResolver
}

func NewJWTAuthenticatorWithKeyFn(keyFn func(t *jwt.Token) (any, error), resolver PrincipalResolver) (*JWTAuthenticator, error) {
	return &JWTAuthenticator{keyFn: keyFn, resolver: resolver}, nil
}

func NewJWTAuthenticator(ctx context.Context, jwkCertUrl string, resolver PrincipalResolver) (*JWTAuthenticator, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwkCertUrl})
	if err != nil {
		return nil, fmt.Errorf("failed to get public keys: %w", err)
	}

	return &JWTAuthenticator{keyFn: k.Keyfunc, resolver: resolver}, nil
}

// Authenticate validates token and returns its subject.
func (a *JWTAuthenticator) Authenticate(token string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}), jwt.WithIssuedAt(), jwt.WithExpirationRequired())
	t, err := parser.Parse(token, a.keyFn)
	if err != nil {
		zap.S().Named("auth").Errorw("failed to parse or the token is invalid", "error", err)
		return "", fmt.Errorf("failed to authenticate token: %w", err)
	}

	if !t.Valid {
		return "", errors.New("failed to parse or validate token")
	}

	subject, err := t.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("failed to read subject claim: %w", err)
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

func (a *JWTAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || accessToken == "" {
			http.Error(w, "No token provided", http.StatusUnauthorized)
			return
		}

		subject, err := a.Authenticate(accessToken)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		principal, err := resolve(r.Context(), a.resolver, subject)
		if err != nil {
			if errors.Is(err, ErrUnknownPrincipal) {
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}
			http.Error(w, "failed to resolve principal", http.StatusInternalServerError)
			return
		}

		ctx := NewPrincipalContext(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
