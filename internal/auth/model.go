package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/verifyhub/case-engine/internal/access"
	"github.com/verifyhub/case-engine/internal/store"
	"github.com/verifyhub/case-engine/internal/store/model"
	"go.uber.org/zap"
)

type principalKeyType struct{}

var (
	principalKey principalKeyType
)

// PrincipalResolver looks authenticated ids up in the directory.
type PrincipalResolver interface {
	Get(ctx context.Context, id string) (*model.Principal, error)
}

var ErrUnknownPrincipal = errors.New("unknown or inactive principal")

func PrincipalFromContext(ctx context.Context) (access.Principal, bool) {
	val := ctx.Value(principalKey)
	if val == nil {
		return access.Principal{}, false
	}
	return val.(access.Principal), true
}

func MustHavePrincipal(ctx context.Context) access.Principal {
	p, found := PrincipalFromContext(ctx)
	if !found {
		zap.S().Named("auth").Panic("failed to find principal in context")
	}
	return p
}

func NewPrincipalContext(ctx context.Context, p access.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// resolve turns an authenticated id into the principal the rest of the
// request acts as. Role and organization always come from the directory.
func resolve(ctx context.Context, resolver PrincipalResolver, id string) (access.Principal, error) {
	if id == "" {
		return access.Principal{}, ErrUnknownPrincipal
	}

	p, err := resolver.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return access.Principal{}, ErrUnknownPrincipal
		}
		return access.Principal{}, fmt.Errorf("failed to resolve principal %s: %w", id, err)
	}
	if !p.Active {
		return access.Principal{}, ErrUnknownPrincipal
	}

	return access.Principal{
		ID:             p.ID,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
	}, nil
}
