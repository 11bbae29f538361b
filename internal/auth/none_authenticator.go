package auth

import (
	"errors"
	"net/http"

	"github.com/verifyhub/case-engine/internal/store"
)

// PrincipalHeader names the principal a request acts as when authentication is disabled.
const PrincipalHeader = "X-Principal-ID"

type NoneAuthenticator struct {
	resolver PrincipalResolver
}

func NewNoneAuthenticator(resolver PrincipalResolver) (*NoneAuthenticator, error) {
	return &NoneAuthenticator{resolver: resolver}, nil
}

func (n *NoneAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(PrincipalHeader)
		if id == "" {
			id = store.AdminPrincipalID
		}

		principal, err := resolve(r.Context(), n.resolver, id)
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
