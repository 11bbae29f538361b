package auth

import (
	"context"
	"net/http"

	"github.com/verifyhub/case-engine/internal/config"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	JWTAuthentication  string = "jwt"
	NoneAuthentication string = "none"
)

func NewAuthenticator(authConfig config.Auth, resolver PrincipalResolver) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case JWTAuthentication:
		return NewJWTAuthenticator(context.Background(), authConfig.JwkCertURL, resolver)
	default:
		return NewNoneAuthenticator(resolver)
	}
}
